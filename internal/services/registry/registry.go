// Package registry реализует реестр подписок: активность пары
// (пользователь, автор), снимок активных авторов, продление и удаление.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Repository определяет методы чтения и удаления подписок в хранилище.
type Repository interface {
	// GetSubscription возвращает подписку или models.ErrNotFound.
	GetSubscription(ctx context.Context, userID, creatorID string) (*models.Subscription, error)
	// ListActiveCreatorIDs возвращает авторов с подпиской, активной в момент now.
	ListActiveCreatorIDs(ctx context.Context, userID string, now time.Time) ([]string, error)
	// DeleteSubscription удаляет подписку и возвращает количество удалённых записей.
	DeleteSubscription(ctx context.Context, userID, creatorID string) (int, error)
}

// Extender атомарно продлевает подписку внутри единицы расчёта транзакции.
type Extender interface {
	ExtendSubscription(ctx context.Context, userID, creatorID string, now time.Time, period time.Duration) (time.Time, error)
}

// Registry — реестр подписок.
type Registry struct {
	repo   Repository
	period time.Duration
	now    func() time.Time
	log    *slog.Logger
}

// New создаёт реестр. Нулевой period заменяется на models.SubscriptionPeriod,
// а nil clock на time.Now.
func New(repo Repository, period time.Duration, clock func() time.Time, log *slog.Logger) *Registry {
	if period <= 0 {
		period = models.SubscriptionPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		repo:   repo,
		period: period,
		now:    clock,
		log:    log,
	}
}

// Now возвращает текущее время по часам реестра.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Period возвращает срок продления.
func (r *Registry) Period() time.Duration {
	return r.period
}

// IsActive сообщает, активна ли подписка пользователя на автора прямо сейчас.
func (r *Registry) IsActive(ctx context.Context, userID, creatorID string) (bool, error) {
	sub, err := r.repo.GetSubscription(ctx, userID, creatorID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("registry.IsActive: %w", err)
	}
	return sub.ActiveAt(r.now()), nil
}

// ActiveCreatorIDs возвращает свежий снимок авторов с активной подпиской.
func (r *Registry) ActiveCreatorIDs(ctx context.Context, userID string) (models.CreatorSet, error) {
	if userID == "" {
		return models.NewCreatorSet(), nil
	}
	ids, err := r.repo.ListActiveCreatorIDs(ctx, userID, r.now())
	if err != nil {
		return nil, fmt.Errorf("registry.ActiveCreatorIDs: %w", err)
	}
	return models.NewCreatorSet(ids...), nil
}

// UpsertExtend создаёт или продлевает подписку: новый срок = max(now, текущий) + period.
// Вызывается только из расчёта транзакции внутри её атомарной единицы w.
func (r *Registry) UpsertExtend(ctx context.Context, w Extender, userID, creatorID string) (time.Time, error) {
	expiresAt, err := w.ExtendSubscription(ctx, userID, creatorID, r.now(), r.period)
	if err != nil {
		return time.Time{}, fmt.Errorf("registry.UpsertExtend: %w", err)
	}
	r.log.Info("subscription extended",
		slog.String("user_id", userID),
		slog.String("creator_id", creatorID),
		slog.Time("expires_at", expiresAt))
	return expiresAt, nil
}

// Remove удаляет подписку целиком, независимо от оставшегося срока.
func (r *Registry) Remove(ctx context.Context, userID, creatorID string) error {
	n, err := r.repo.DeleteSubscription(ctx, userID, creatorID)
	if err != nil {
		return fmt.Errorf("registry.Remove: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("registry.Remove: %w", models.ErrNotFound)
	}
	r.log.Info("subscription removed", slog.String("user_id", userID), slog.String("creator_id", creatorID))
	return nil
}
