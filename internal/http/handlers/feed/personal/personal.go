// Package personal отдаёт персональную ленту пользователя.
package personal

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/request"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Service собирает ленту.
type Service interface {
	ComposeFeed(ctx context.Context, userID string, page, limit int) (*models.FeedPage, error)
}

// Handler обрабатывает GET /feed.
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
// @Summary Персональная лента
// @Description Посты авторов с активной подпиской, либо публичные и подписочные посты платформы. Платные посты не показываются.
// @Tags Feed
// @Produce  json
// @Param page query int false "Номер страницы" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} response.Response{data=models.FeedPage}
// @Failure 401 {object} response.ErrorResponse
// @Router /feed [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.feed.personal"
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

	page, limit := request.Page(r)
	res, err := h.service.ComposeFeed(r.Context(), userID, page, limit)
	if err != nil {
		if response.RenderError(w, r, err) == http.StatusInternalServerError {
			log.Error("failed to compose feed", sl.Err(err))
		}
		return
	}

	log.Info("feed composed", slog.Int("count", len(res.Items)), slog.Int("total", res.Total))
	render.JSON(w, r, response.StatusOKWithData(res))
}
