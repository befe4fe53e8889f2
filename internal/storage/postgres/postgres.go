// Package postgres реализует реестр транзакций, реестр подписок и
// поставщика метаданных контента на основе PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

const (
	constraintCompletedPurchase   = "uq_transactions_completed_purchase"
	constraintPendingSubscription = "uq_transactions_pending_subscription"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// NewWithDB оборачивает уже открытое соединение.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{DB: db}
}

// Close закрывает соединение.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что схема применена.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'transactions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage.CheckDatabaseReady: required table transactions missing")
	}
	return nil
}

// wrap приводит ошибки драйвера к доменным и добавляет имя операции.
func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.InvalidTextRepresentation:
			// некорректный uuid в запросе означает, что такой сущности нет
			return fmt.Errorf("%s: %w", op, models.ErrNotFound)
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraintCompletedPurchase:
			return fmt.Errorf("%s: %w", op, models.ErrAlreadyPurchased)
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraintPendingSubscription:
			return fmt.Errorf("%s: %w", op, models.ErrAlreadySubscribed)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}
