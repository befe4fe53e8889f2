package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/paywall-ledger/internal/migrations"
	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(dsn)
	require.NoError(t, err, "failed to create storage")
	t.Cleanup(func() { _ = s.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, filepath.Join(root, "migrations")))
	require.NoError(t, s.CheckDatabaseReady(ctx))
	return s
}

// testDataFactory создаёт авторов и контент напрямую в базе.
type testDataFactory struct {
	s *Storage
}

func (f testDataFactory) creator(t *testing.T, fee int64) models.Creator {
	c := models.Creator{ID: uuid.NewString(), UserID: uuid.NewString(), SubscriptionFee: fee}
	_, err := f.s.DB.Exec(`INSERT INTO creators (id, user_id, subscription_fee) VALUES ($1, $2, $3)`,
		c.ID, c.UserID, c.SubscriptionFee)
	require.NoError(t, err)
	return c
}

func (f testDataFactory) post(t *testing.T, creatorID string, tier models.Tier, paid bool, price int64, at time.Time) string {
	id := uuid.NewString()
	_, err := f.s.DB.Exec(`INSERT INTO posts (id, creator_id, body, media_url, is_paid, price, visibility, created_at)
		VALUES ($1, $2, 'body', 'https://cdn/x', $3, $4, $5, $6)`,
		id, creatorID, paid, price, string(tier), at)
	require.NoError(t, err)
	return id
}

func (f testDataFactory) message(t *testing.T, creatorID, senderID, receiverID string, price int64) string {
	id := uuid.NewString()
	_, err := f.s.DB.Exec(`INSERT INTO private_messages (id, sender_id, receiver_id, creator_id, body, is_paid, price)
		VALUES ($1, $2, $3, $4, 'hi', $5, $6)`,
		id, senderID, receiverID, creatorID, price > 0, price)
	require.NoError(t, err)
	return id
}

func pendingTx(payer string, creatorID *string, kind models.Kind, amount int64, ref *models.ContentRef) models.Transaction {
	return models.Transaction{
		ID: uuid.NewString(), PayerID: payer, CreatorID: creatorID, Amount: amount,
		Kind: kind, Status: models.StatusPending, ContentRef: ref, CreatedAt: time.Now().UTC(),
	}
}

func TestIntegration_Storage(t *testing.T) {
	s := setupTestDatabase(t)
	f := testDataFactory{s: s}
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := f.creator(t, 999)
	free := f.post(t, c.ID, models.TierPublic, false, 0, base.Add(-3*time.Hour))
	subsOnly := f.post(t, c.ID, models.TierSubscribers, false, 0, base.Add(-2*time.Hour))
	paid := f.post(t, c.ID, models.TierPaid, true, 500, base.Add(-time.Hour))
	fan := uuid.NewString()
	msg := f.message(t, c.ID, c.UserID, fan, 300)

	t.Run("content metadata", func(t *testing.T) {
		p, err := s.GetPost(ctx, paid)
		require.NoError(t, err)
		assert.Equal(t, c.UserID, p.OwnerID)
		assert.True(t, p.Paid())

		m, err := s.GetMessage(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, models.TierPaid, m.Visibility)
		assert.Equal(t, fan, m.ReceiverID)

		_, err = s.GetPost(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = s.GetCreator(ctx, uuid.NewString())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("list posts", func(t *testing.T) {
		items, total, err := s.ListPosts(ctx, models.PostFilter{CreatorIDs: []string{c.ID}, ExcludePaid: true, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, items, 1)
		assert.Equal(t, subsOnly, items[0].Ref.ID, "newest first")

		items, total, err = s.ListPosts(ctx, models.PostFilter{Tiers: []models.Tier{models.TierPublic}, ExcludePaid: true, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, free, items[0].Ref.ID)
	})

	t.Run("pending subscription guard", func(t *testing.T) {
		payer := uuid.NewString()
		first := pendingTx(payer, &c.ID, models.KindSubscription, 999, nil)
		require.NoError(t, s.CreateTransaction(ctx, first))
		err := s.CreateTransaction(ctx, pendingTx(payer, &c.ID, models.KindSubscription, 999, nil))
		assert.ErrorIs(t, err, models.ErrAlreadySubscribed)

		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx storage.SettlementTx) error {
			return tx.MarkSettled(ctx, first.ID, models.StatusFailed, base)
		}))
		assert.NoError(t, s.CreateTransaction(ctx, pendingTx(payer, &c.ID, models.KindSubscription, 999, nil)))
	})

	t.Run("purchase uniqueness at settlement", func(t *testing.T) {
		ref := models.PostRef(paid)
		a := pendingTx(fan, &c.ID, models.KindPPV, 500, &ref)
		b := pendingTx(fan, &c.ID, models.KindPPV, 500, &ref)
		require.NoError(t, s.CreateTransaction(ctx, a))
		require.NoError(t, s.CreateTransaction(ctx, b))

		settle := func(id string) error {
			return s.RunInTx(ctx, func(ctx context.Context, tx storage.SettlementTx) error {
				err := tx.MarkSettled(ctx, id, models.StatusCompleted, base)
				if errors.Is(err, models.ErrAlreadyPurchased) {
					if failErr := tx.MarkSettled(ctx, id, models.StatusFailed, base); failErr != nil {
						return failErr
					}
					return nil
				}
				return err
			})
		}
		require.NoError(t, settle(a.ID))
		require.NoError(t, settle(b.ID))

		got, err := s.GetTransaction(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got.Status)
		require.NotNil(t, got.SettledAt)

		ok, err := s.HasCompletedPurchase(ctx, fan, ref)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.HasCompletedPurchase(ctx, fan, models.MessageRef(paid))
		require.NoError(t, err)
		assert.False(t, ok)

		set, err := s.ListPurchasedRefs(ctx, fan, []models.ContentRef{ref, models.PostRef(free), models.MessageRef(msg)})
		require.NoError(t, err)
		assert.Equal(t, models.NewPurchaseSet(ref), set)

		err = s.RunInTx(ctx, func(ctx context.Context, tx storage.SettlementTx) error {
			return tx.MarkSettled(ctx, a.ID, models.StatusFailed, base)
		})
		assert.ErrorIs(t, err, models.ErrConflictingSettlement)
	})

	t.Run("concurrent extensions commute", func(t *testing.T) {
		user := uuid.NewString()
		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.RunInTx(ctx, func(ctx context.Context, tx storage.SettlementTx) error {
					_, err := tx.ExtendSubscription(ctx, user, c.ID, base, models.SubscriptionPeriod)
					return err
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		sub, err := s.GetSubscription(ctx, user, c.ID)
		require.NoError(t, err)
		assert.True(t, base.Add(5*models.SubscriptionPeriod).Equal(sub.ExpiresAt), "got %s", sub.ExpiresAt)

		ids, err := s.ListActiveCreatorIDs(ctx, user, base)
		require.NoError(t, err)
		assert.Equal(t, []string{c.ID}, ids)
		ids, err = s.ListActiveCreatorIDs(ctx, user, sub.ExpiresAt)
		require.NoError(t, err)
		assert.Empty(t, ids, "expiry equal to now is inactive")

		n, err := s.DeleteSubscription(ctx, user, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rollback discards extension", func(t *testing.T) {
		user := uuid.NewString()
		boom := errors.New("boom")
		err := s.RunInTx(ctx, func(ctx context.Context, tx storage.SettlementTx) error {
			if _, err := tx.ExtendSubscription(ctx, user, c.ID, base, models.SubscriptionPeriod); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		_, err = s.GetSubscription(ctx, user, c.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
