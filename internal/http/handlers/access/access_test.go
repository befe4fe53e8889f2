package access

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ResolveAccess(ctx context.Context, userID string, ref models.ContentRef) (*models.FeedItem, error) {
	args := m.Called(ctx, userID, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeedItem), args.Error(1)
}

func TestAccessHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	locked := &models.FeedItem{
		Item: models.ContentItem{
			Ref: models.PostRef("post-1"), CreatorID: "c-1", OwnerID: "u-owner",
			Title: "teaser", IsPaid: true, Price: 500, Visibility: models.TierPaid,
		},
		Verdict: models.Verdict{Locked: true, AccessLevel: models.AccessPPV},
	}

	tests := []struct {
		name           string
		contentType    models.ContentType
		userID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "anonymous sees locked post",
			contentType: models.ContentPost,
			setupMock: func(m *MockService) {
				m.On("ResolveAccess", mock.Anything, "", models.PostRef("post-1")).Return(locked, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"verdict":{"locked":true,"access_level":"PPV","has_purchased":false}`,
		},
		{
			name:        "message of other users",
			contentType: models.ContentMessage,
			userID:      "u-outsider",
			setupMock: func(m *MockService) {
				m.On("ResolveAccess", mock.Anything, "u-outsider", models.MessageRef("post-1")).Return(nil, models.ErrForbidden).Once()
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"status":"Error","error":"forbidden"}`,
		},
		{
			name:        "unknown post",
			contentType: models.ContentPost,
			userID:      "u-fan",
			setupMock: func(m *MockService) {
				m.On("ResolveAccess", mock.Anything, "u-fan", models.PostRef("post-1")).Return(nil, models.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMock(service)
			handler := New(logger, service, tt.contentType)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/x/post-1/access", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "post-1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			if tt.userID != "" {
				ctx = middlewarectx.WithUser(ctx, tt.userID, "user")
			}
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			service.AssertExpectations(t)
		})
	}
}
