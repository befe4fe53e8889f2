package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/access"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/feed/creator"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/feed/personal"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/health"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/subscription/remove"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/transaction/create"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/transaction/read"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/middlewarectx"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// RouteDeps — всё, что нужно маршрутам помимо сервисов.
type RouteDeps struct {
	Tokens        middlewarectx.TokenParser
	WebhookSecret string
	Metrics       http.Handler
	Checkers      map[string]health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s *Services, d RouteDeps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с обязательной JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.Auth(d.Tokens, logger))
			r.Post("/transactions", create.New(logger, s.Ledger).ServeHTTP)
			r.Get("/transactions/{id}", read.New(logger, s.Ledger).ServeHTTP)
			r.Delete("/subscriptions/{creatorId}", remove.New(logger, s.Ledger).ServeHTTP)
			r.Get("/messages/{id}/access", access.New(logger, s.Entitlement, models.ContentMessage).ServeHTTP)
			r.Get("/feed", personal.New(logger, s.Feed).ServeHTTP)
		})

		// Анонимный доступ разрешён, но невалидный токен отклоняется
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalAuth(d.Tokens, logger))
			r.Get("/posts/{id}/access", access.New(logger, s.Entitlement, models.ContentPost).ServeHTTP)
			r.Get("/creators/{id}/posts", creator.New(logger, s.Feed).ServeHTTP)
		})

		// Webhook endpoint (аутентификация подписью)
		r.Post("/payments/webhook", paymentwebhook.New(logger, s.Confirmation, d.WebhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger, d.Checkers).ServeHTTP)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
