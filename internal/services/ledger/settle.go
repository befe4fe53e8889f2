package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage"
)

// Settle применяет подтверждение платёжного шлюза к транзакции.
//
// Переход pending -> status выполняется ровно один раз. Повтор того же
// подтверждения возвращает Applied=false без изменений. Подтверждение,
// противоречащее уже записанному исходу, возвращает models.ErrConflictingSettlement.
// Для completed-подписки продление выполняется в той же атомарной единице.
// Если у плательщика уже есть завершённая покупка того же элемента,
// транзакция переводится в failed и возвращается models.ErrAlreadyPurchased.
// Повторное completed для такой транзакции снова возвращает
// models.ErrAlreadyPurchased и конфликтом не считается.
func (s *Service) Settle(ctx context.Context, id string, status models.Status) (*models.Settlement, error) {
	const op = "ledger.Settle"
	if !status.Terminal() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidStatus)
	}

	var (
		result    models.Settlement
		duplicate bool
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx storage.SettlementTx) error {
		t, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		result = models.Settlement{Transaction: *t}

		if t.Status.Terminal() {
			if t.Status == status {
				return nil
			}
			return models.ErrConflictingSettlement
		}

		now := s.subs.Now()
		final := status
		if status == models.StatusCompleted {
			err = tx.MarkSettled(ctx, t.ID, models.StatusCompleted, now)
			switch {
			case errors.Is(err, models.ErrAlreadyPurchased):
				duplicate = true
				final = models.StatusFailed
				if err := tx.MarkSettled(ctx, t.ID, models.StatusFailed, now); err != nil {
					return err
				}
			case err != nil:
				return err
			}
		} else if err := tx.MarkSettled(ctx, t.ID, models.StatusFailed, now); err != nil {
			return err
		}

		if final == models.StatusCompleted && t.Kind == models.KindSubscription && t.CreatorID != nil {
			expiresAt, err := s.subs.UpsertExtend(ctx, tx, t.PayerID, *t.CreatorID)
			if err != nil {
				return err
			}
			result.ExpiresAt = &expiresAt
		}

		settledAt := now
		result.Transaction.Status = final
		result.Transaction.SettledAt = &settledAt
		result.Applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrConflictingSettlement) && s.lostPurchaseRace(ctx, status, result.Transaction) {
			s.log.Info("settlement already applied",
				slog.String("transaction_id", id),
				slog.String("status", string(status)),
				slog.String("recorded_status", string(result.Transaction.Status)))
			return &result, fmt.Errorf("%s: %w", op, models.ErrAlreadyPurchased)
		}
		if errors.Is(err, models.ErrConflictingSettlement) {
			s.metrics.SettlementConflict()
			s.log.Warn("conflicting settlement rejected",
				slog.String("transaction_id", id),
				slog.String("status", string(status)),
				slog.String("recorded_status", string(result.Transaction.Status)))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !result.Applied {
		s.log.Info("settlement already applied",
			slog.String("transaction_id", id),
			slog.String("status", string(status)))
		return &result, nil
	}

	t := result.Transaction
	s.metrics.TransactionSettled(t.Kind, t.Status, t.Amount)
	attrs := []any{
		slog.String("transaction_id", t.ID),
		slog.String("kind", string(t.Kind)),
		slog.String("status", string(t.Status)),
	}
	if result.ExpiresAt != nil {
		attrs = append(attrs, slog.String("expires_at", result.ExpiresAt.Format(time.RFC3339)))
	}
	s.log.Info("transaction settled", attrs...)
	s.publish(ctx, EventTransactionSettled, models.Event{
		Type:        EventTransactionSettled,
		Transaction: t,
		ExpiresAt:   result.ExpiresAt,
	})

	if duplicate {
		return &result, fmt.Errorf("%s: %w", op, models.ErrAlreadyPurchased)
	}
	return &result, nil
}

// lostPurchaseRace сообщает, что completed пришло для покупки, уже
// переведённой в failed из-за завершённой покупки того же элемента.
func (s *Service) lostPurchaseRace(ctx context.Context, status models.Status, t models.Transaction) bool {
	const op = "ledger.lostPurchaseRace"
	if status != models.StatusCompleted || t.Status != models.StatusFailed || t.ContentRef == nil {
		return false
	}
	owned, err := s.repo.HasCompletedPurchase(ctx, t.PayerID, *t.ContentRef)
	if err != nil {
		s.log.Error("failed to check purchase",
			slog.String("op", op),
			slog.String("transaction_id", t.ID),
			sl.Err(err))
		return false
	}
	return owned
}
