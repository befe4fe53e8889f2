// Package health отдаёт состояние готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
)

// Checker проверяет одну зависимость.
type Checker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// CheckerFunc позволяет использовать функцию как Checker.
type CheckerFunc func(ctx context.Context) error

// CheckDatabaseReady вызывает f.
func (f CheckerFunc) CheckDatabaseReady(ctx context.Context) error { return f(ctx) }

type Handler struct {
	log      *slog.Logger
	checkers map[string]Checker
}

// New создает Handler. nil-проверки пропускаются.
func New(log *slog.Logger, checkers map[string]Checker) *Handler {
	active := make(map[string]Checker, len(checkers))
	for name, c := range checkers {
		if c != nil {
			active[name] = c
		}
	}
	return &Handler{
		log:      log,
		checkers: active,
	}
}

// ServeHTTP godoc
// @Summary Готовность сервиса
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	status := make(map[string]string, len(h.checkers))
	healthy := true
	for name, c := range h.checkers {
		if err := c.CheckDatabaseReady(r.Context()); err != nil {
			h.log.Warn("dependency not ready", sl.Op(op), slog.String("dependency", name), sl.Err(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Error: "not ready", Data: status})
		return
	}
	render.JSON(w, r, response.StatusOKWithData(status))
}
