package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// CreateTransaction создаёт транзакцию pending для запроса на покупку
// и возвращает её ID. Неудачный вызов не оставляет записи в реестре.
func (s *Service) CreateTransaction(ctx context.Context, req models.PurchaseRequest) (string, error) {
	var (
		t   *models.Transaction
		err error
	)
	switch req.Kind {
	case models.KindSubscription:
		t, err = s.subscribe(ctx, req.PayerID, req.TargetID, req.Renew)
	case models.KindTip:
		t, err = s.tip(ctx, req.PayerID, req.TargetID, req.Amount)
	case models.KindPPV:
		t, err = s.buyPost(ctx, req.PayerID, req.TargetID)
	case models.KindMessage:
		t, err = s.buyMessage(ctx, req.PayerID, req.TargetID)
	default:
		return "", fmt.Errorf("ledger.CreateTransaction: %w", models.ErrInvalidKind)
	}
	if err != nil {
		return "", err
	}

	if err := s.repo.CreateTransaction(ctx, *t); err != nil {
		return "", fmt.Errorf("ledger.CreateTransaction: %w", err)
	}

	s.metrics.TransactionCreated(t.Kind)
	s.log.Info("transaction created",
		slog.String("transaction_id", t.ID),
		slog.String("kind", string(t.Kind)),
		slog.String("payer_id", t.PayerID),
		slog.Int64("amount", t.Amount))
	s.publish(ctx, EventTransactionCreated, models.Event{Type: EventTransactionCreated, Transaction: *t})
	return t.ID, nil
}

// Subscribe создаёт оплату подписки на автора.
func (s *Service) Subscribe(ctx context.Context, payerID, creatorID string) (string, error) {
	return s.CreateTransaction(ctx, models.PurchaseRequest{Kind: models.KindSubscription, PayerID: payerID, TargetID: creatorID})
}

// Renew создаёт оплату продления подписки. Допускается при активной подписке.
func (s *Service) Renew(ctx context.Context, payerID, creatorID string) (string, error) {
	return s.CreateTransaction(ctx, models.PurchaseRequest{Kind: models.KindSubscription, PayerID: payerID, TargetID: creatorID, Renew: true})
}

// Tip создаёт чаевые автору.
func (s *Service) Tip(ctx context.Context, payerID, creatorID string, amount int64) (string, error) {
	return s.CreateTransaction(ctx, models.PurchaseRequest{Kind: models.KindTip, PayerID: payerID, TargetID: creatorID, Amount: amount})
}

// BuyPost создаёт покупку платного поста.
func (s *Service) BuyPost(ctx context.Context, payerID, postID string) (string, error) {
	return s.CreateTransaction(ctx, models.PurchaseRequest{Kind: models.KindPPV, PayerID: payerID, TargetID: postID})
}

// BuyMessage создаёт покупку платного сообщения.
func (s *Service) BuyMessage(ctx context.Context, payerID, messageID string) (string, error) {
	return s.CreateTransaction(ctx, models.PurchaseRequest{Kind: models.KindMessage, PayerID: payerID, TargetID: messageID})
}

func (s *Service) pending(payerID string, creatorID *string, amount int64, kind models.Kind) *models.Transaction {
	return &models.Transaction{
		ID:        s.newID(),
		PayerID:   payerID,
		CreatorID: creatorID,
		Amount:    amount,
		Kind:      kind,
		Status:    models.StatusPending,
		CreatedAt: s.subs.Now(),
	}
}

func (s *Service) subscribe(ctx context.Context, payerID, creatorID string, renew bool) (*models.Transaction, error) {
	const op = "ledger.Subscribe"
	creator, err := s.repo.GetCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if creator.UserID == payerID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
	}
	active, err := s.subs.IsActive(ctx, payerID, creator.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if active && !renew {
		return nil, fmt.Errorf("%s: %w", op, models.ErrAlreadySubscribed)
	}

	// стоимость фиксируется в момент создания и дальше не перечитывается
	t := s.pending(payerID, &creator.ID, creator.SubscriptionFee, models.KindSubscription)
	t.Renewal = renew
	return t, nil
}

func (s *Service) tip(ctx context.Context, payerID, creatorID string, amount int64) (*models.Transaction, error) {
	const op = "ledger.Tip"
	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	creator, err := s.repo.GetCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if creator.UserID == payerID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
	}
	return s.pending(payerID, &creator.ID, amount, models.KindTip), nil
}

func (s *Service) buyPost(ctx context.Context, payerID, postID string) (*models.Transaction, error) {
	const op = "ledger.BuyPost"
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !post.Paid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotPurchasable)
	}
	if post.OwnerID == payerID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSelfTarget)
	}
	// статус подписки не учитывается: платный пост покупается отдельно
	if err := s.ensureNotPurchased(ctx, op, payerID, post.Ref); err != nil {
		return nil, err
	}

	creatorID := post.CreatorID
	t := s.pending(payerID, &creatorID, post.Price, models.KindPPV)
	ref := post.Ref
	t.ContentRef = &ref
	return t, nil
}

func (s *Service) buyMessage(ctx context.Context, payerID, messageID string) (*models.Transaction, error) {
	const op = "ledger.BuyMessage"
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !msg.Paid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotPurchasable)
	}
	if msg.ReceiverID != payerID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	if err := s.ensureNotPurchased(ctx, op, payerID, msg.Ref); err != nil {
		return nil, err
	}

	var creatorID *string
	if msg.CreatorID != "" {
		id := msg.CreatorID
		creatorID = &id
	}
	t := s.pending(payerID, creatorID, msg.Price, models.KindMessage)
	ref := msg.Ref
	t.ContentRef = &ref
	return t, nil
}

func (s *Service) ensureNotPurchased(ctx context.Context, op, payerID string, ref models.ContentRef) error {
	purchased, err := s.repo.HasCompletedPurchase(ctx, payerID, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if purchased {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyPurchased)
	}
	return nil
}

// GetTransaction возвращает транзакцию плательщика. Чужие транзакции не раскрываются.
func (s *Service) GetTransaction(ctx context.Context, payerID, id string) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger.GetTransaction: %w", err)
	}
	if t.PayerID != payerID {
		return nil, fmt.Errorf("ledger.GetTransaction: %w", models.ErrNotFound)
	}
	return t, nil
}

// Unsubscribe удаляет подписку целиком. Оставшийся срок не возвращается.
func (s *Service) Unsubscribe(ctx context.Context, userID, creatorID string) error {
	if err := s.subs.Remove(ctx, userID, creatorID); err != nil {
		return fmt.Errorf("ledger.Unsubscribe: %w", err)
	}
	return nil
}
