// Package storage описывает контракты хранилища, общие для реализаций
// на PostgreSQL и в памяти.
package storage

import (
	"context"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// SettlementTx — операции, выполняемые в одной атомарной единице при
// применении подтверждения платежа. Либо все изменения фиксируются, либо ни одно.
type SettlementTx interface {
	// GetTransactionForUpdate читает транзакцию и блокирует её до конца единицы.
	GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	// MarkSettled переводит транзакцию из pending в status.
	// Для completed возвращает models.ErrAlreadyPurchased, если у плательщика
	// уже есть завершённая покупка того же элемента; единица при этом остаётся пригодной.
	MarkSettled(ctx context.Context, id string, status models.Status, at time.Time) error
	// ExtendSubscription атомарно создаёт или продлевает подписку по правилу
	// max(now, expires_at) + period и возвращает новый срок.
	ExtendSubscription(ctx context.Context, userID, creatorID string, now time.Time, period time.Duration) (time.Time, error)
}

// TxRunner выполняет fn в одной атомарной единице.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx SettlementTx) error) error
}
