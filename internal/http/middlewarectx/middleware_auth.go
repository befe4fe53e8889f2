// Package middlewarectx содержит HTTP middleware аутентификации по JWT.
//
// Auth требует валидный токен в заголовке Authorization и кладёт в контекст
// идентификатор пользователя и роль. OptionalAuth пропускает анонимные запросы,
// но отклоняет запрос с невалидным токеном.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/paywall-ledger/internal/http/response"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID — ключ для идентификатора пользователя в контексте
	UserID Key = "user_id"
	// Role — ключ для роли пользователя в контексте
	Role Key = "role"
)

// TokenParser разбирает и проверяет токен.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// UserIDFrom возвращает идентификатор пользователя из контекста или пустую строку.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(UserID).(string)
	return id
}

// WithUser возвращает контекст с пользователем и ролью.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, UserID, userID)
	return context.WithValue(ctx, Role, role)
}

// Auth возвращает middleware, который требует валидный Bearer-токен.
func Auth(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(parser, log, true)
}

// OptionalAuth возвращает middleware, который принимает запрос без токена как анонимный.
func OptionalAuth(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(parser, log, false)
}

func authenticate(parser TokenParser, log *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Auth"
			authHeader := r.Header.Get("Authorization")

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if authHeader == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := parser.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Role)))
		})
	}
}
