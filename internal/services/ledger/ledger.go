// Package ledger реализует конечный автомат транзакций: создание покупок
// в состоянии pending и их идемпотентный расчёт по подтверждению платежа.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/services/registry"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage"
)

// Ключи маршрутизации событий жизненного цикла.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionSettled = "transaction.settled"
)

// Repository определяет методы хранилища, нужные автомату транзакций.
type Repository interface {
	storage.TxRunner
	// GetCreator возвращает аккаунт автора.
	GetCreator(ctx context.Context, id string) (*models.Creator, error)
	// GetPost возвращает метаданные поста.
	GetPost(ctx context.Context, id string) (*models.ContentItem, error)
	// GetMessage возвращает метаданные сообщения.
	GetMessage(ctx context.Context, id string) (*models.ContentItem, error)
	// CreateTransaction сохраняет транзакцию pending.
	CreateTransaction(ctx context.Context, t models.Transaction) error
	// GetTransaction возвращает транзакцию по ID.
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// HasCompletedPurchase проверяет наличие завершённой покупки элемента.
	HasCompletedPurchase(ctx context.Context, payerID string, ref models.ContentRef) (bool, error)
}

// Subscriptions — часть реестра подписок, которой пользуется автомат.
type Subscriptions interface {
	Now() time.Time
	IsActive(ctx context.Context, userID, creatorID string) (bool, error)
	UpsertExtend(ctx context.Context, w registry.Extender, userID, creatorID string) (time.Time, error)
	Remove(ctx context.Context, userID, creatorID string) error
}

// Publisher публикует события жизненного цикла транзакций.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Recorder учитывает метрики реестра.
type Recorder interface {
	TransactionCreated(kind models.Kind)
	TransactionSettled(kind models.Kind, status models.Status, amount int64)
	SettlementConflict()
}

// Service — автомат транзакций.
type Service struct {
	repo      Repository
	subs      Subscriptions
	publisher Publisher
	metrics   Recorder
	newID     func() string
	log       *slog.Logger
}

// New создаёт автомат транзакций. publisher и metrics могут быть nil.
func New(repo Repository, subs Subscriptions, publisher Publisher, metrics Recorder, newID func() string, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		repo:      repo,
		subs:      subs,
		publisher: publisher,
		metrics:   metrics,
		newID:     newID,
		log:       log,
	}
}

// publish отправляет событие после фиксации. Ошибка только логируется:
// повторы доставки остаются на стороне внешних получателей.
func (s *Service) publish(ctx context.Context, routingKey string, event models.Event) {
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.log.Warn("failed to publish transaction event",
			slog.String("routing_key", routingKey),
			slog.String("transaction_id", event.Transaction.ID),
			sl.Err(err))
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

type nopRecorder struct{}

func (nopRecorder) TransactionCreated(models.Kind)                       {}
func (nopRecorder) TransactionSettled(models.Kind, models.Status, int64) {}
func (nopRecorder) SettlementConflict()                                  {}
