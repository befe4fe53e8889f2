package postgres

import (
	"context"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// GetSubscription возвращает подписку пользователя на автора.
func (s *Storage) GetSubscription(ctx context.Context, userID, creatorID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT user_id, creator_id, expires_at, created_at
			  FROM subscriptions
			  WHERE user_id = $1 AND creator_id = $2`
	var sub models.Subscription
	if err := s.DB.QueryRowContext(ctx, query, userID, creatorID).Scan(&sub.UserID, &sub.CreatorID,
		&sub.ExpiresAt, &sub.CreatedAt); err != nil {
		return nil, wrap(op, err)
	}
	return &sub, nil
}

// ListActiveCreatorIDs возвращает авторов, подписка на которых активна в момент now.
func (s *Storage) ListActiveCreatorIDs(ctx context.Context, userID string, now time.Time) ([]string, error) {
	const op = "storage.ListActiveCreatorIDs"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT creator_id FROM subscriptions WHERE user_id = $1 AND expires_at > $2`
	rows, err := s.DB.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return result, nil
}

// DeleteSubscription удаляет подписку и возвращает количество удалённых строк.
func (s *Storage) DeleteSubscription(ctx context.Context, userID, creatorID string) (int, error) {
	const op = "storage.DeleteSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	query := `DELETE FROM subscriptions WHERE user_id = $1 AND creator_id = $2`
	res, err := s.DB.ExecContext(ctx, query, userID, creatorID)
	if err != nil {
		return 0, wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(op, err)
	}
	return int(n), nil
}
