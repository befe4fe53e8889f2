// Package confirmation применяет подтверждения платёжного шлюза к реестру транзакций.
// Подтверждения доставляются как минимум однократно, повторы отсекаются по event_id.
package confirmation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/paywall-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Settler применяет итоговый статус к транзакции.
type Settler interface {
	Settle(ctx context.Context, id string, status models.Status) (*models.Settlement, error)
}

// Deduper помечает обработанные события.
type Deduper interface {
	SetIfAbsent(ctx context.Context, key string) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Processor обрабатывает подтверждения из любого источника: вебхука или очереди.
type Processor struct {
	settler  Settler
	dedupe   Deduper
	validate *validator.Validate
	log      *slog.Logger
}

// New создаёт Processor. dedupe может быть nil: тогда повторы отсекает только реестр.
func New(settler Settler, dedupe Deduper, log *slog.Logger) *Processor {
	return &Processor{
		settler:  settler,
		dedupe:   dedupe,
		validate: validator.New(),
		log:      log,
	}
}

// Validate проверяет поля подтверждения.
func (p *Processor) Validate(c models.Confirmation) error {
	return p.validate.Struct(c)
}

// Process применяет подтверждение. Повтор уже обработанного event_id
// возвращает Applied=false без обращения к реестру. Если реестр отклонил
// подтверждение, отметка снимается.
func (p *Processor) Process(ctx context.Context, c models.Confirmation) (*models.Settlement, error) {
	const op = "confirmation.Process"
	log := p.log.With(
		slog.String("op", op),
		slog.String("event_id", c.EventID),
		slog.String("transaction_id", c.TransactionID))

	if err := p.Validate(c); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrInvalidStatus, err)
	}

	if p.dedupe != nil && c.EventID != "" {
		fresh, err := p.dedupe.SetIfAbsent(ctx, c.EventID)
		if err != nil {
			// без redis полагаемся на идемпотентность реестра
			log.Warn("dedupe unavailable", sl.Err(err))
		} else if !fresh {
			log.Info("duplicate confirmation skipped")
			return &models.Settlement{Transaction: models.Transaction{ID: c.TransactionID}}, nil
		}
	}

	res, err := p.settler.Settle(ctx, c.TransactionID, models.Status(c.Status))
	// ключ остаётся только за успешно применённым событием: повтор после
	// отказа снова доходит до реестра и получает тот же ответ
	if err != nil && p.dedupe != nil && c.EventID != "" {
		if invErr := p.dedupe.Invalidate(ctx, c.EventID); invErr != nil {
			log.Error("failed to release dedupe key", sl.Err(invErr))
		}
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// HandleDelivery обрабатывает сообщение из очереди. Окончательные исходы
// (битое сообщение, конфликт, неизвестная транзакция) подтверждаются,
// временные ошибки возвращаются для повторной доставки.
func (p *Processor) HandleDelivery(ctx context.Context, body []byte) error {
	const op = "confirmation.HandleDelivery"
	var c models.Confirmation
	if err := json.Unmarshal(body, &c); err != nil {
		p.log.Error("failed to decode confirmation", slog.String("op", op), sl.Err(err))
		return nil
	}

	_, err := p.Process(ctx, c)
	switch {
	case err == nil:
		return nil
	case definitive(err):
		p.log.Warn("confirmation rejected",
			slog.String("op", op),
			slog.String("transaction_id", c.TransactionID),
			sl.Err(err))
		return nil
	default:
		return err
	}
}

func definitive(err error) bool {
	return models.IsConflict(err) || models.IsNotFound(err) || models.IsValidation(err) ||
		errors.Is(err, models.ErrForbidden)
}
