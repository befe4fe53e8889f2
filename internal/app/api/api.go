// Package api собирает HTTP API реестра платного контента.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/paywall-ledger/internal/cache"
	"github.com/magabrotheeeer/paywall-ledger/internal/config"
	"github.com/magabrotheeeer/paywall-ledger/internal/http/handlers/health"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/jwt"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/migrations"
	"github.com/magabrotheeeer/paywall-ledger/internal/rabbitmq"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage/memory"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage/postgres"
)

// App — HTTP-сервер вместе с открытыми ресурсами.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	closers []func() error
}

// New открывает хранилище, кэш и брокер и собирает маршруты.
// Redis и RabbitMQ необязательны: пустой адрес отключает соответствующую функцию.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.api.New"
	a := &App{logger: logger}
	checkers := make(map[string]health.Checker)

	store, err := a.openStore(cfg, checkers)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.DefaultRegisterer
	deps := Deps{
		Store:   store,
		Period:  cfg.SubscriptionPeriod,
		Metrics: metrics.NewLedger(reg),
	}

	if cfg.AddressRedis != "" {
		cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, cacheRedis.Close)
		deps.Dedupe = cacheRedis
		checkers["redis"] = health.CheckerFunc(func(ctx context.Context) error {
			return cacheRedis.Db.Ping(ctx).Err()
		})
	} else {
		logger.Warn("redis address is empty, webhook de-duplication relies on the ledger only")
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := a.openPublisher(cfg.RabbitMQ)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		deps.Publisher = publisher
	} else {
		logger.Warn("rabbitmq url is empty, lifecycle events are not published")
	}

	services := NewServices(deps, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, RouteDeps{
		Tokens:        jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		WebhookSecret: cfg.WebhookSecret,
		Metrics:       promhttp.Handler(),
		Checkers:      checkers,
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

func (a *App) openStore(cfg *config.Config, checkers map[string]health.Checker) (Store, error) {
	if cfg.StorageDriver == config.DriverMemory {
		store := memory.New()
		if cfg.SeedPath != "" {
			fixtures, err := memory.LoadFixtures(cfg.SeedPath)
			if err != nil {
				return nil, err
			}
			if err := store.Seed(fixtures); err != nil {
				return nil, err
			}
		}
		a.logger.Warn("using in-memory storage, data is lost on restart")
		return store, nil
	}

	db, err := postgres.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	checkers["postgres"] = db
	return db, nil
}

func (a *App) openPublisher(cfg config.RabbitMQ) (*rabbitmq.Publisher, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.MaxRetries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	// очередь подтверждений объявляет воркер, здесь нужен только обменник
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, nil)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ch.Close)
	go a.watchConnection(conn)

	return rabbitmq.NewPublisher(ch, cfg.Exchange), nil
}

func (a *App) watchConnection(conn *amqp.Connection) {
	if err := <-conn.NotifyClose(make(chan *amqp.Error, 1)); err != nil {
		a.logger.Error("rabbitmq connection closed", sl.Err(err))
	}
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

// close освобождает ресурсы в обратном порядке открытия.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}
