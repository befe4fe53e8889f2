package request

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

func TestPage(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{query: "", wantPage: 1, wantLimit: models.DefaultPageLimit},
		{query: "?page=3&limit=20", wantPage: 3, wantLimit: 20},
		{query: "?page=-1&limit=0", wantPage: 1, wantLimit: models.DefaultPageLimit},
		{query: "?page=abc&limit=xyz", wantPage: 1, wantLimit: models.DefaultPageLimit},
		{query: "?limit=5000", wantPage: 1, wantLimit: models.MaxPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/feed"+tt.query, nil)
			page, limit := Page(r)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}
