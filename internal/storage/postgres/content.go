package postgres

import (
	"context"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// GetCreator возвращает аккаунт автора по ID.
func (s *Storage) GetCreator(ctx context.Context, id string) (*models.Creator, error) {
	const op = "storage.GetCreator"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, subscription_fee FROM creators WHERE id = $1`
	var c models.Creator
	if err := s.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.SubscriptionFee); err != nil {
		return nil, wrap(op, err)
	}
	return &c, nil
}

// GetPost возвращает пост вместе с владельцем аккаунта автора.
func (s *Storage) GetPost(ctx context.Context, id string) (*models.ContentItem, error) {
	const op = "storage.GetPost"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT p.id, p.creator_id, c.user_id, p.title, p.body, p.media_url,
			      p.is_paid, p.price, p.visibility, p.created_at
			  FROM posts p
			  JOIN creators c ON c.id = p.creator_id
			  WHERE p.id = $1`
	item := models.ContentItem{Ref: models.ContentRef{Type: models.ContentPost}}
	if err := s.DB.QueryRowContext(ctx, query, id).Scan(&item.Ref.ID, &item.CreatorID, &item.OwnerID,
		&item.Title, &item.Body, &item.MediaURL, &item.IsPaid, &item.Price, &item.Visibility,
		&item.CreatedAt); err != nil {
		return nil, wrap(op, err)
	}
	return &item, nil
}

// GetMessage возвращает личное сообщение. Владельцем сообщения считается отправитель.
func (s *Storage) GetMessage(ctx context.Context, id string) (*models.ContentItem, error) {
	const op = "storage.GetMessage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, COALESCE(creator_id::text, ''), sender_id, receiver_id, body, media_url,
			      is_paid, price, created_at
			  FROM private_messages
			  WHERE id = $1`
	item := models.ContentItem{Ref: models.ContentRef{Type: models.ContentMessage}}
	if err := s.DB.QueryRowContext(ctx, query, id).Scan(&item.Ref.ID, &item.CreatorID, &item.OwnerID,
		&item.ReceiverID, &item.Body, &item.MediaURL, &item.IsPaid, &item.Price,
		&item.CreatedAt); err != nil {
		return nil, wrap(op, err)
	}
	item.Visibility = models.TierPublic
	if item.IsPaid {
		item.Visibility = models.TierPaid
	}
	return &item, nil
}
