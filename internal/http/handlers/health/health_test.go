package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := CheckerFunc(func(context.Context) error { return nil })
	down := CheckerFunc(func(context.Context) error { return assert.AnError })

	tests := []struct {
		name           string
		checkers       map[string]Checker
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "no dependencies",
			checkers:       nil,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{}}`,
		},
		{
			name:           "all ready",
			checkers:       map[string]Checker{"postgres": ok, "redis": ok},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"postgres":"ok","redis":"ok"}}`,
		},
		{
			name:           "nil checker skipped",
			checkers:       map[string]Checker{"postgres": ok, "redis": nil},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"postgres":"ok"}}`,
		},
		{
			name:           "one down",
			checkers:       map[string]Checker{"postgres": ok, "redis": down},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"not ready","data":{"postgres":"ok","redis":"down"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			New(logger, tt.checkers).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}
