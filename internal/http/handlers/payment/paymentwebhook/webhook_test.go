package paymentwebhook

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/confirmation"
)

const secret = "webhook-secret"

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) Settle(ctx context.Context, id string, status models.Status) (*models.Settlement, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func TestSign(t *testing.T) {
	a := Sign(secret, []byte(`{"a":1}`))
	b := Sign(secret, []byte(`{"a":2}`))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Sign(secret, []byte(`{"a":1}`)))
	assert.NotEqual(t, a, Sign("other", []byte(`{"a":1}`)))
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	valid := `{"event_id":"evt-1","transaction_id":"t-1","status":"completed"}`

	tests := []struct {
		name           string
		body           string
		signature      string
		setupMock      func(*MockSettler)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "applied",
			body:      valid,
			signature: Sign(secret, []byte(valid)),
			setupMock: func(m *MockSettler) {
				m.On("Settle", mock.Anything, "t-1", models.StatusCompleted).
					Return(&models.Settlement{Transaction: models.Transaction{ID: "t-1"}, Applied: true}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"transaction_id":"t-1","applied":true}}`,
		},
		{
			name:      "repeat is a no-op",
			body:      valid,
			signature: Sign(secret, []byte(valid)),
			setupMock: func(m *MockSettler) {
				m.On("Settle", mock.Anything, "t-1", models.StatusCompleted).
					Return(&models.Settlement{Transaction: models.Transaction{ID: "t-1"}}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"transaction_id":"t-1","applied":false}}`,
		},
		{
			name:           "missing signature",
			body:           valid,
			setupMock:      func(*MockSettler) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"invalid signature"}`,
		},
		{
			name:           "wrong signature",
			body:           valid,
			signature:      Sign("other", []byte(valid)),
			setupMock:      func(*MockSettler) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"invalid signature"}`,
		},
		{
			name:           "invalid json",
			body:           `{bad`,
			signature:      Sign(secret, []byte(`{bad`)),
			setupMock:      func(*MockSettler) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "pending is not a settlement",
			body:           `{"transaction_id":"t-1","status":"pending"}`,
			signature:      Sign(secret, []byte(`{"transaction_id":"t-1","status":"pending"}`)),
			setupMock:      func(*MockSettler) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Status must be one of [completed failed]"}`,
		},
		{
			name:      "conflicting outcome",
			body:      valid,
			signature: Sign(secret, []byte(valid)),
			setupMock: func(m *MockSettler) {
				m.On("Settle", mock.Anything, "t-1", models.StatusCompleted).
					Return(nil, models.ErrConflictingSettlement).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"status":"Error","error":"conflicting settlement"}`,
		},
		{
			name:      "unknown transaction",
			body:      valid,
			signature: Sign(secret, []byte(valid)),
			setupMock: func(m *MockSettler) {
				m.On("Settle", mock.Anything, "t-1", models.StatusCompleted).
					Return(nil, models.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"not found"}`,
		},
		{
			name:      "storage failure",
			body:      valid,
			signature: Sign(secret, []byte(valid)),
			setupMock: func(m *MockSettler) {
				m.On("Settle", mock.Anything, "t-1", models.StatusCompleted).
					Return(nil, assert.AnError).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := new(MockSettler)
			tt.setupMock(settler)
			handler := New(logger, confirmation.New(settler, nil, logger), secret)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(tt.body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			require.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			settler.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_NoSecretRejectsEverything(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(logger, confirmation.New(new(MockSettler), nil, logger), "")

	body := `{"transaction_id":"t-1","status":"completed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(body))
	req.Header.Set(SignatureHeader, Sign("", []byte(body)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
