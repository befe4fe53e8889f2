package entitlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Content предоставляет метаданные контента.
type Content interface {
	GetPost(ctx context.Context, id string) (*models.ContentItem, error)
	GetMessage(ctx context.Context, id string) (*models.ContentItem, error)
}

// Purchases предоставляет снимок завершённых покупок.
type Purchases interface {
	ListPurchasedRefs(ctx context.Context, payerID string, refs []models.ContentRef) (models.PurchaseSet, error)
}

// Subscriptions предоставляет снимок активных подписок.
type Subscriptions interface {
	ActiveCreatorIDs(ctx context.Context, userID string) (models.CreatorSet, error)
}

// Service проверяет доступ к отдельному элементу. Снимки подписок и покупок
// читаются заново на каждый запрос.
type Service struct {
	content   Content
	purchases Purchases
	subs      Subscriptions
	log       *slog.Logger
}

// New создаёт сервис проверки доступа.
func New(content Content, purchases Purchases, subs Subscriptions, log *slog.Logger) *Service {
	return &Service{
		content:   content,
		purchases: purchases,
		subs:      subs,
		log:       log,
	}
}

// ResolveAccess возвращает элемент и вердикт для пользователя.
// Личное сообщение доступно только отправителю и получателю, остальным models.ErrForbidden.
func (s *Service) ResolveAccess(ctx context.Context, userID string, ref models.ContentRef) (*models.FeedItem, error) {
	const op = "entitlement.ResolveAccess"

	var (
		item *models.ContentItem
		err  error
	)
	switch ref.Type {
	case models.ContentPost:
		item, err = s.content.GetPost(ctx, ref.ID)
	case models.ContentMessage:
		item, err = s.content.GetMessage(ctx, ref.ID)
		if err == nil && (userID == "" || (userID != item.OwnerID && userID != item.ReceiverID)) {
			err = models.ErrForbidden
		}
	default:
		err = models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	subs, purchases, err := s.Snapshot(ctx, userID, []models.ContentItem{*item})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := Apply(userID, *item, subs, purchases)
	s.log.Debug("access resolved",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("content_type", string(ref.Type)),
		slog.String("content_id", ref.ID),
		slog.Bool("locked", res.Verdict.Locked))
	return &res, nil
}

// Snapshot читает активные подписки пользователя и его покупки среди платных items.
// Для анонимного пользователя возвращает пустые снимки.
func (s *Service) Snapshot(ctx context.Context, userID string, items []models.ContentItem) (models.CreatorSet, models.PurchaseSet, error) {
	if userID == "" {
		return models.NewCreatorSet(), models.NewPurchaseSet(), nil
	}

	subs, err := s.subs.ActiveCreatorIDs(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var refs []models.ContentRef
	for _, it := range items {
		if it.Paid() && it.OwnerID != userID {
			refs = append(refs, it.Ref)
		}
	}
	if len(refs) == 0 {
		return subs, models.NewPurchaseSet(), nil
	}
	purchases, err := s.purchases.ListPurchasedRefs(ctx, userID, refs)
	if err != nil {
		return nil, nil, err
	}
	return subs, purchases, nil
}
