// Package memory реализует контракты хранилища в памяти процесса.
// Используется в тестах и при storage_driver: memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage"
)

type pairKey struct {
	userID    string
	creatorID string
}

type purchaseKey struct {
	payerID string
	ref     models.ContentRef
}

// Store хранит данные в памяти. Все методы безопасны для параллельного вызова.
type Store struct {
	mu sync.RWMutex

	creators      map[string]models.Creator
	posts         map[string]models.ContentItem
	messages      map[string]models.ContentItem
	transactions  map[string]models.Transaction
	subscriptions map[pairKey]models.Subscription

	// индексы ограничений уникальности
	completedPurchases   map[purchaseKey]string
	pendingSubscriptions map[pairKey]string
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		creators:             make(map[string]models.Creator),
		posts:                make(map[string]models.ContentItem),
		messages:             make(map[string]models.ContentItem),
		transactions:         make(map[string]models.Transaction),
		subscriptions:        make(map[pairKey]models.Subscription),
		completedPurchases:   make(map[purchaseKey]string),
		pendingSubscriptions: make(map[pairKey]string),
	}
}

// AddCreator добавляет аккаунт автора.
func (s *Store) AddCreator(c models.Creator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creators[c.ID] = c
}

// AddPost добавляет пост. Владелец берётся из аккаунта автора.
func (s *Store) AddPost(p models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Ref.Type = models.ContentPost
	if c, ok := s.creators[p.CreatorID]; ok {
		p.OwnerID = c.UserID
	}
	if p.Visibility == "" {
		p.Visibility = models.TierPublic
	}
	s.posts[p.Ref.ID] = p
}

// AddMessage добавляет личное сообщение.
func (s *Store) AddMessage(m models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Ref.Type = models.ContentMessage
	m.Visibility = models.TierPublic
	if m.IsPaid {
		m.Visibility = models.TierPaid
	}
	s.messages[m.Ref.ID] = m
}

// GetCreator возвращает аккаунт автора по ID.
func (s *Store) GetCreator(_ context.Context, id string) (*models.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creators[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetCreator: %w", models.ErrNotFound)
	}
	return &c, nil
}

// GetPost возвращает пост по ID.
func (s *Store) GetPost(_ context.Context, id string) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetPost: %w", models.ErrNotFound)
	}
	return &p, nil
}

// GetMessage возвращает сообщение по ID.
func (s *Store) GetMessage(_ context.Context, id string) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetMessage: %w", models.ErrNotFound)
	}
	return &m, nil
}

// ListPosts возвращает страницу постов по фильтру и общее число кандидатов.
func (s *Store) ListPosts(_ context.Context, f models.PostFilter) ([]models.ContentItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creators, tiers map[string]struct{}
	if f.CreatorIDs != nil {
		creators = make(map[string]struct{}, len(f.CreatorIDs))
		for _, id := range f.CreatorIDs {
			creators[id] = struct{}{}
		}
	}
	if f.Tiers != nil {
		tiers = make(map[string]struct{}, len(f.Tiers))
		for _, t := range f.Tiers {
			tiers[string(t)] = struct{}{}
		}
	}

	candidates := make([]models.ContentItem, 0)
	for _, p := range s.posts {
		if creators != nil {
			if _, ok := creators[p.CreatorID]; !ok {
				continue
			}
		}
		if tiers != nil {
			if _, ok := tiers[string(p.Visibility)]; !ok {
				continue
			}
		}
		if f.ExcludePaid && p.Paid() {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].Ref.ID > candidates[j].Ref.ID
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	total := len(candidates)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return candidates[start:end], total, nil
}

// CreateTransaction сохраняет новую транзакцию.
func (s *Store) CreateTransaction(_ context.Context, t models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("memory.CreateTransaction: duplicate id %s", t.ID)
	}
	if t.Kind == models.KindSubscription && t.Status == models.StatusPending && t.CreatorID != nil {
		key := pairKey{userID: t.PayerID, creatorID: *t.CreatorID}
		if _, ok := s.pendingSubscriptions[key]; ok {
			return fmt.Errorf("memory.CreateTransaction: %w", models.ErrAlreadySubscribed)
		}
		s.pendingSubscriptions[key] = t.ID
	}
	s.transactions[t.ID] = t
	return nil
}

// GetTransaction возвращает транзакцию по ID.
func (s *Store) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetTransaction: %w", models.ErrNotFound)
	}
	return &t, nil
}

// HasCompletedPurchase проверяет наличие завершённой покупки элемента.
func (s *Store) HasCompletedPurchase(_ context.Context, payerID string, ref models.ContentRef) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completedPurchases[purchaseKey{payerID: payerID, ref: ref}]
	return ok, nil
}

// ListPurchasedRefs возвращает подмножество refs, купленных плательщиком.
func (s *Store) ListPurchasedRefs(_ context.Context, payerID string, refs []models.ContentRef) (models.PurchaseSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := models.NewPurchaseSet()
	for _, ref := range refs {
		if _, ok := s.completedPurchases[purchaseKey{payerID: payerID, ref: ref}]; ok {
			result[ref] = struct{}{}
		}
	}
	return result, nil
}

// GetSubscription возвращает подписку пользователя на автора.
func (s *Store) GetSubscription(_ context.Context, userID, creatorID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[pairKey{userID: userID, creatorID: creatorID}]
	if !ok {
		return nil, fmt.Errorf("memory.GetSubscription: %w", models.ErrNotFound)
	}
	return &sub, nil
}

// ListActiveCreatorIDs возвращает авторов с активной в момент now подпиской.
func (s *Store) ListActiveCreatorIDs(_ context.Context, userID string, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for key, sub := range s.subscriptions {
		if key.userID == userID && sub.ActiveAt(now) {
			result = append(result, key.creatorID)
		}
	}
	sort.Strings(result)
	return result, nil
}

// DeleteSubscription удаляет подписку и возвращает количество удалённых записей.
func (s *Store) DeleteSubscription(_ context.Context, userID, creatorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{userID: userID, creatorID: creatorID}
	if _, ok := s.subscriptions[key]; !ok {
		return 0, nil
	}
	delete(s.subscriptions, key)
	return 1, nil
}

// RunInTx выполняет fn под эксклюзивной блокировкой хранилища.
// При ошибке fn изменения откатываются по журналу.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.SettlementTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Tx реализует storage.SettlementTx над заблокированным Store.
type Tx struct {
	store *Store
	undo  []func()
}

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// GetTransactionForUpdate читает транзакцию. Блокировка уже удерживается RunInTx.
func (t *Tx) GetTransactionForUpdate(_ context.Context, id string) (*models.Transaction, error) {
	tr, ok := t.store.transactions[id]
	if !ok {
		return nil, fmt.Errorf("memory.GetTransactionForUpdate: %w", models.ErrNotFound)
	}
	return &tr, nil
}

// MarkSettled переводит транзакцию из pending в конечное состояние.
func (t *Tx) MarkSettled(_ context.Context, id string, status models.Status, at time.Time) error {
	const op = "memory.MarkSettled"
	s := t.store
	prev, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if prev.Status != models.StatusPending {
		return fmt.Errorf("%s: %w", op, models.ErrConflictingSettlement)
	}

	var pkey purchaseKey
	unlocks := status == models.StatusCompleted && prev.Kind.Unlocks() && prev.ContentRef != nil
	if unlocks {
		pkey = purchaseKey{payerID: prev.PayerID, ref: *prev.ContentRef}
		if _, exists := s.completedPurchases[pkey]; exists {
			return fmt.Errorf("%s: %w", op, models.ErrAlreadyPurchased)
		}
	}

	next := prev
	next.Status = status
	settledAt := at
	next.SettledAt = &settledAt
	s.transactions[id] = next
	t.undo = append(t.undo, func() { s.transactions[id] = prev })

	if unlocks {
		s.completedPurchases[pkey] = id
		t.undo = append(t.undo, func() { delete(s.completedPurchases, pkey) })
	}
	if prev.Kind == models.KindSubscription && prev.CreatorID != nil {
		skey := pairKey{userID: prev.PayerID, creatorID: *prev.CreatorID}
		if s.pendingSubscriptions[skey] == id {
			delete(s.pendingSubscriptions, skey)
			t.undo = append(t.undo, func() { s.pendingSubscriptions[skey] = id })
		}
	}
	return nil
}

// ExtendSubscription создаёт или продлевает подписку по правилу max(now, expires_at) + period.
func (t *Tx) ExtendSubscription(_ context.Context, userID, creatorID string, now time.Time, period time.Duration) (time.Time, error) {
	s := t.store
	key := pairKey{userID: userID, creatorID: creatorID}
	prev, existed := s.subscriptions[key]

	next := prev
	if !existed {
		next = models.Subscription{UserID: userID, CreatorID: creatorID, CreatedAt: now}
	}
	next.ExpiresAt = models.ExtendExpiry(prev.ExpiresAt, now, period)
	s.subscriptions[key] = next
	t.undo = append(t.undo, func() {
		if existed {
			s.subscriptions[key] = prev
		} else {
			delete(s.subscriptions, key)
		}
	})
	return next.ExpiresAt, nil
}
