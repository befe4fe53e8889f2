package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage"
)

const transactionColumns = `id, payer_id, creator_id, amount, kind, status, renewal,
			      content_type, content_id, created_at, settled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                      models.Transaction
		creatorID              sql.NullString
		contentType, contentID sql.NullString
		settledAt              sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.PayerID, &creatorID, &t.Amount, &t.Kind, &t.Status, &t.Renewal,
		&contentType, &contentID, &t.CreatedAt, &settledAt); err != nil {
		return nil, err
	}
	if creatorID.Valid {
		t.CreatorID = &creatorID.String
	}
	if contentType.Valid && contentID.Valid {
		t.ContentRef = &models.ContentRef{Type: models.ContentType(contentType.String), ID: contentID.String}
	}
	if settledAt.Valid {
		t.SettledAt = &settledAt.Time
	}
	return &t, nil
}

// CreateTransaction сохраняет новую транзакцию в состоянии pending.
// Вторая неподтверждённая оплата подписки на ту же пару отклоняется с models.ErrAlreadySubscribed.
func (s *Storage) CreateTransaction(ctx context.Context, t models.Transaction) error {
	const op = "storage.CreateTransaction"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	var creatorID, contentType, contentID sql.NullString
	if t.CreatorID != nil {
		creatorID = sql.NullString{String: *t.CreatorID, Valid: true}
	}
	if t.ContentRef != nil {
		contentType = sql.NullString{String: string(t.ContentRef.Type), Valid: true}
		contentID = sql.NullString{String: t.ContentRef.ID, Valid: true}
	}

	query := `INSERT INTO transactions (id, payer_id, creator_id, amount, kind, status, renewal,
			      content_type, content_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.DB.ExecContext(ctx, query, t.ID, t.PayerID, creatorID, t.Amount, string(t.Kind),
		string(t.Status), t.Renewal, contentType, contentID, t.CreatedAt)
	if err != nil {
		return wrap(op, err)
	}
	return nil
}

// GetTransaction возвращает транзакцию по ID.
func (s *Storage) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	const op = "storage.GetTransaction"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrap(op, err)
	}
	return t, nil
}

// HasCompletedPurchase проверяет наличие завершённой покупки элемента плательщиком.
func (s *Storage) HasCompletedPurchase(ctx context.Context, payerID string, ref models.ContentRef) (bool, error) {
	const op = "storage.HasCompletedPurchase"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM transactions
			      WHERE payer_id = $1 AND content_type = $2 AND content_id = $3
			        AND status = 'completed' AND kind IN ('PPV', 'MESSAGE')
			  )`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, payerID, string(ref.Type), ref.ID).Scan(&exists); err != nil {
		return false, wrap(op, err)
	}
	return exists, nil
}

// ListPurchasedRefs возвращает подмножество refs, купленных плательщиком.
func (s *Storage) ListPurchasedRefs(ctx context.Context, payerID string, refs []models.ContentRef) (models.PurchaseSet, error) {
	const op = "storage.ListPurchasedRefs"
	result := models.NewPurchaseSet()
	if len(refs) == 0 {
		return result, nil
	}
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	wanted := models.NewPurchaseSet(refs...)
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}

	query := `SELECT content_type, content_id FROM transactions
			  WHERE payer_id = $1
			    AND status = 'completed' AND kind IN ('PPV', 'MESSAGE')
			    AND content_id = ANY(string_to_array($2, ',')::uuid[])`
	rows, err := s.DB.QueryContext(ctx, query, payerID, strings.Join(ids, ","))
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var ref models.ContentRef
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, wrap(op, err)
		}
		if wanted.Has(ref) {
			result[ref] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// RunInTx выполняет fn в одной транзакции базы данных.
// Ошибка fn откатывает все изменения.
func (s *Storage) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.SettlementTx) error) error {
	const op = "storage.RunInTx"
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(ctx, &Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Tx реализует storage.SettlementTx поверх *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// GetTransactionForUpdate читает транзакцию с блокировкой строки.
func (t *Tx) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	const op = "storage.GetTransactionForUpdate"
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrap(op, err)
	}
	return tr, nil
}

// MarkSettled переводит транзакцию из pending в конечное состояние.
// Нарушение уникальности покупки откатывается к точке сохранения, чтобы
// в той же транзакции можно было отметить операцию как failed.
func (t *Tx) MarkSettled(ctx context.Context, id string, status models.Status, at time.Time) error {
	const op = "storage.MarkSettled"
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT mark_settled`); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE transactions SET status = $1, settled_at = $2
			  WHERE id = $3 AND status = 'pending'`
	res, err := t.tx.ExecContext(ctx, query, string(status), at, id)
	if err != nil {
		err = wrap(op, err)
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT mark_settled`); rbErr != nil {
			return fmt.Errorf("%s: %w", op, rbErr)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrConflictingSettlement)
	}
	if _, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT mark_settled`); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExtendSubscription создаёт или продлевает подписку одним upsert.
// Блокировка строки при конфликте делает правило max-then-extend
// независимым от порядка фиксации параллельных продлений.
func (t *Tx) ExtendSubscription(ctx context.Context, userID, creatorID string, now time.Time, period time.Duration) (time.Time, error) {
	const op = "storage.ExtendSubscription"
	query := `INSERT INTO subscriptions (user_id, creator_id, expires_at, created_at, updated_at)
			  VALUES ($1, $2, $3::timestamptz + $4::float8 * INTERVAL '1 second', $3, $3)
			  ON CONFLICT (user_id, creator_id) DO UPDATE
			  SET expires_at = GREATEST(subscriptions.expires_at, EXCLUDED.updated_at)
			                   + $4::float8 * INTERVAL '1 second',
			      updated_at = EXCLUDED.updated_at
			  RETURNING expires_at`
	var expiresAt time.Time
	if err := t.tx.QueryRowContext(ctx, query, userID, creatorID, now, period.Seconds()).Scan(&expiresAt); err != nil {
		return time.Time{}, wrap(op, err)
	}
	return expiresAt, nil
}
