// Package creator отдаёт страницу автора с вердиктом доступа для каждого поста.
package creator

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/request"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Service собирает страницу автора.
type Service interface {
	ComposeCreatorListing(ctx context.Context, creatorID, userID string, page, limit int) (*models.FeedPage, error)
}

// Handler обрабатывает GET /creators/{id}/posts.
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
// @Summary Страница автора
// @Description Все посты автора с признаком блокировки. Авторизация необязательна.
// @Tags Feed
// @Produce  json
// @Param id path string true "ID автора"
// @Param page query int false "Номер страницы" default(1)
// @Param limit query int false "Размер страницы" default(10)
// @Success 200 {object} response.Response{data=models.FeedPage}
// @Failure 404 {object} response.ErrorResponse "Автор не найден"
// @Router /creators/{id}/posts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.feed.creator"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	creatorID := chi.URLParam(r, "id")
	page, limit := request.Page(r)

	res, err := h.service.ComposeCreatorListing(r.Context(), creatorID, middlewarectx.UserIDFrom(r.Context()), page, limit)
	if err != nil {
		if response.RenderError(w, r, err) == http.StatusInternalServerError {
			log.Error("failed to compose creator listing", sl.Err(err))
		}
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}
