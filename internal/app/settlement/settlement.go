// Package settlement собирает воркер, который применяет подтверждения платежей из очереди.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/paywall-ledger/internal/cache"
	"github.com/magabrotheeeer/paywall-ledger/internal/config"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/metrics"
	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/migrations"
	"github.com/magabrotheeeer/paywall-ledger/internal/rabbitmq"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/confirmation"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/ledger"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/registry"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage/postgres"
)

type App struct {
	conn      *amqp.Connection
	consumeCh *amqp.Channel
	publishCh *amqp.Channel
	db        *postgres.Storage
	cache     *cache.Cache
	processor *confirmation.Processor
	metrics   *http.Server
	queue     string
	workers   int
	logger    *slog.Logger
}

// New подключается к PostgreSQL, Redis и RabbitMQ. Воркер работает только с PostgreSQL:
// хранилище в памяти не разделяется между процессами.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.settlement.New"
	if cfg.StorageDriver != config.DriverPostgres {
		return nil, fmt.Errorf("%s: settlement worker requires storage_driver %s", op, config.DriverPostgres)
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is empty", op)
	}

	a := &App{
		queue:   cfg.ConfirmationQueue,
		workers: cfg.Workers,
		logger:  logger,
	}

	db, err := postgres.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var dedupe confirmation.Deduper
	if cfg.AddressRedis != "" {
		if a.cache, err = cache.InitServer(ctx, cfg.RedisConnection); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		dedupe = a.cache
	}

	if a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQ.MaxRetries, cfg.RetryDelay); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.consumeCh, err = rabbitmq.SetupChannel(a.conn, cfg.Exchange, rabbitmq.ConfirmationQueues(cfg.ConfirmationQueue)); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.publishCh, err = rabbitmq.SetupChannel(a.conn, cfg.Exchange, nil); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	subs := registry.New(db, cfg.SubscriptionPeriod, nil, logger)
	ledgerService := ledger.New(db, subs, rabbitmq.NewPublisher(a.publishCh, cfg.Exchange), metrics.NewLedger(reg), uuid.NewString, logger)
	a.processor = confirmation.New(ledgerService, dedupe, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metrics = &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Run запускает обработчиков очереди и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	const op = "app.settlement.Run"

	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", sl.Err(err))
		}
	}()

	wg, err := rabbitmq.ConsumerMessage(ctx, a.consumeCh, a.queue, a.workers, a.processor.HandleDelivery, a.logger)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", a.queue), sl.Err(err))
		a.close()
		return fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Info("settlement worker started", slog.String("queue", a.queue), slog.Int("workers", a.workers))

	closed := a.conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-ctx.Done():
		a.logger.Info("settlement worker shutting down gracefully")
	case amqpErr := <-closed:
		err = fmt.Errorf("%s: rabbitmq connection lost", op)
		if amqpErr != nil {
			err = fmt.Errorf("%s: %w", op, amqpErr)
		}
		a.logger.Error("rabbitmq connection lost", sl.Err(err))
	}

	// доделываем уже полученные сообщения до закрытия канала
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shErr := a.metrics.Shutdown(shutdownCtx); shErr != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(shErr))
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.publishCh != nil {
		if err := a.publishCh.Close(); err != nil {
			a.logger.Warn("failed to close publish channel", sl.Err(err))
		}
	}
	if a.consumeCh != nil {
		if err := a.consumeCh.Close(); err != nil {
			a.logger.Warn("failed to close consume channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", sl.Err(err))
		}
	}
}
