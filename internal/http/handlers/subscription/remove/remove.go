// Package remove обрабатывает отписку от автора.
package remove

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
)

// Handler обрабатывает DELETE /subscriptions/{creatorId}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service удаляет подписку.
type Service interface {
	Unsubscribe(ctx context.Context, userID, creatorID string) error
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отписаться от автора
// @Description Удаляет подписку целиком, оставшийся срок не возвращается
// @Tags Subscriptions
// @Produce  json
// @Param creatorId path string true "ID автора"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Подписки нет"
// @Router /subscriptions/{creatorId} [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.remove"

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

	creatorID := chi.URLParam(r, "creatorId")
	if err := h.service.Unsubscribe(r.Context(), userID, creatorID); err != nil {
		if response.RenderError(w, r, err) == http.StatusInternalServerError {
			log.Error("failed to delete subscription", sl.Err(err))
		}
		return
	}

	log.Info("subscription deleted", slog.String("creator_id", creatorID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"creator_id": creatorID,
	}))
}
