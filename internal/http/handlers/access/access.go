// Package access отдаёт элемент контента вместе с вердиктом доступа.
package access

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

// Service вычисляет доступ к элементу.
type Service interface {
	ResolveAccess(ctx context.Context, userID string, ref models.ContentRef) (*models.FeedItem, error)
}

// Handler обрабатывает GET /posts/{id}/access и GET /messages/{id}/access.
type Handler struct {
	log         *slog.Logger
	service     Service
	contentType models.ContentType
}

// New создает Handler для элементов типа contentType.
func New(log *slog.Logger, service Service, contentType models.ContentType) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		contentType: contentType,
	}
}

// ServeHTTP godoc
// @Summary Проверить доступ к посту
// @Description Возвращает пост и вердикт доступа. Закрытый пост отдаётся без текста и медиа.
// @Tags Access
// @Produce  json
// @Param id path string true "ID поста"
// @Success 200 {object} response.Response{data=models.FeedItem}
// @Failure 404 {object} response.ErrorResponse
// @Router /posts/{id}/access [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.access"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ref := models.ContentRef{Type: h.contentType, ID: chi.URLParam(r, "id")}
	userID := middlewarectx.UserIDFrom(r.Context())

	item, err := h.service.ResolveAccess(r.Context(), userID, ref)
	if err != nil {
		if response.RenderError(w, r, err) == http.StatusInternalServerError {
			log.Error("failed to resolve access", sl.Err(err))
		}
		return
	}

	render.JSON(w, r, response.StatusOKWithData(item))
}
