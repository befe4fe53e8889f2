// Package sl содержит вспомогательные атрибуты для логгера slog.
package sl

import (
	"io"
	"log/slog"
)

// Err возвращает атрибут "error" с текстом ошибки. Для nil значение пустое.
//
// Пример:
//
//	log.Error("failed to settle transaction", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Op возвращает атрибут "op" с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// Окружения, для которых настраивается логгер.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New создаёт логгер для окружения env: текстовый с уровнем Debug локально,
// JSON с уровнем Debug в dev и JSON с уровнем Info в остальных окружениях.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvLocal:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
