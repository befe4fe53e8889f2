// Package read отдаёт транзакцию плательщику.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Service читает транзакцию плательщика.
type Service interface {
	GetTransaction(ctx context.Context, payerID, id string) (*models.Transaction, error)
}

// Handler обрабатывает GET /transactions/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить транзакцию
// @Tags Transactions
// @Produce  json
// @Param id path string true "ID транзакции"
// @Success 200 {object} response.Response{data=models.Transaction}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /transactions/{id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transaction.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserIDFrom(r.Context())
	if userID == "" {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id := chi.URLParam(r, "id")
	t, err := h.service.GetTransaction(r.Context(), userID, id)
	if err != nil {
		if response.RenderError(w, r, err) == http.StatusInternalServerError {
			log.Error("failed to read transaction", sl.Err(err))
		}
		return
	}

	render.JSON(w, r, response.StatusOKWithData(t))
}
