package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
	"github.com/magabrotheeeer/paywall-ledger/internal/storage"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewWithDB(db), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var settledAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, models.ErrNotFound},
		{"invalid uuid", &pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation}, models.ErrNotFound},
		{"completed purchase", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintCompletedPurchase}, models.ErrAlreadyPurchased},
		{"pending subscription", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintPendingSubscription}, models.ErrAlreadySubscribed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrap("storage.Test", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "storage.Test")
		})
	}

	other := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "creators_user_id_key"}
	err := wrap("storage.Test", other)
	assert.False(t, models.IsConflict(err))
	assert.ErrorIs(t, err, other)
}

func TestGetCreator(t *testing.T) {
	s, mock := newMock(t)
	query := q(`SELECT id, user_id, subscription_fee FROM creators WHERE id = $1`)

	mock.ExpectQuery(query).WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "subscription_fee"}).AddRow("c-1", "u-1", int64(999)))
	c, err := s.GetCreator(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, &models.Creator{ID: "c-1", UserID: "u-1", SubscriptionFee: 999}, c)

	mock.ExpectQuery(query).WithArgs("missing").WillReturnError(sql.ErrNoRows)
	_, err = s.GetCreator(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetMessage_VisibilityFromPaidFlag(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "creator_id", "sender_id", "receiver_id", "body", "media_url", "is_paid", "price", "created_at"}

	mock.ExpectQuery(q(`FROM private_messages`)).WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("m-1", "c-1", "u-owner", "u-fan", "hi", "", true, int64(300), settledAt))
	m, err := s.GetMessage(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageRef("m-1"), m.Ref)
	assert.Equal(t, models.TierPaid, m.Visibility)
	assert.Equal(t, "u-owner", m.OwnerID)
	assert.Equal(t, "u-fan", m.ReceiverID)
}

func TestCreateTransaction(t *testing.T) {
	s, mock := newMock(t)
	creator := "c-1"
	ref := models.PostRef("p-1")
	insert := q(`INSERT INTO transactions`)

	mock.ExpectExec(insert).
		WithArgs("t-1", "u-fan", sqlmock.AnyArg(), int64(500), "PPV", "pending", false, sqlmock.AnyArg(), sqlmock.AnyArg(), settledAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err := s.CreateTransaction(context.Background(), models.Transaction{
		ID: "t-1", PayerID: "u-fan", CreatorID: &creator, Amount: 500,
		Kind: models.KindPPV, Status: models.StatusPending, ContentRef: &ref, CreatedAt: settledAt,
	})
	require.NoError(t, err)

	mock.ExpectExec(insert).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintPendingSubscription})
	err = s.CreateTransaction(context.Background(), models.Transaction{
		ID: "t-2", PayerID: "u-fan", CreatorID: &creator, Amount: 999,
		Kind: models.KindSubscription, Status: models.StatusPending, CreatedAt: settledAt,
	})
	assert.ErrorIs(t, err, models.ErrAlreadySubscribed)
}

func TestGetTransaction_NullableColumns(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "payer_id", "creator_id", "amount", "kind", "status", "renewal", "content_type", "content_id", "created_at", "settled_at"}

	mock.ExpectQuery(q(`FROM transactions WHERE id = $1`)).WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("t-1", "u-fan", nil, int64(300), "MESSAGE", "completed", false, "message", "m-1", settledAt, settledAt))
	tr, err := s.GetTransaction(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Nil(t, tr.CreatorID)
	require.NotNil(t, tr.ContentRef)
	assert.Equal(t, models.MessageRef("m-1"), *tr.ContentRef)
	require.NotNil(t, tr.SettledAt)
	assert.Equal(t, models.StatusCompleted, tr.Status)

	mock.ExpectQuery(q(`FROM transactions WHERE id = $1`)).WithArgs("not-a-uuid").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})
	_, err = s.GetTransaction(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListPurchasedRefs(t *testing.T) {
	s, mock := newMock(t)

	set, err := s.ListPurchasedRefs(context.Background(), "u-fan", nil)
	require.NoError(t, err)
	assert.Empty(t, set)

	refs := []models.ContentRef{models.PostRef("id-1"), models.PostRef("id-2")}
	mock.ExpectQuery(q(`SELECT content_type, content_id FROM transactions`)).WithArgs("u-fan", "id-1,id-2").
		WillReturnRows(sqlmock.NewRows([]string{"content_type", "content_id"}).
			AddRow("post", "id-1").
			AddRow("message", "id-2"))
	set, err = s.ListPurchasedRefs(context.Background(), "u-fan", refs)
	require.NoError(t, err)
	assert.True(t, set.Has(models.PostRef("id-1")))
	assert.False(t, set.Has(models.PostRef("id-2")), "a purchased message does not unlock a post with the same id")
}

func TestListPosts(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "creator_id", "user_id", "title", "body", "media_url", "is_paid", "price", "visibility", "created_at"}

	items, total, err := s.ListPosts(context.Background(), models.PostFilter{CreatorIDs: []string{}, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)

	f := models.PostFilter{CreatorIDs: []string{"c-1", "c-2"}, ExcludePaid: true, Limit: 10, Offset: 0}
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM posts p WHERE p.creator_id = ANY(string_to_array($1, ',')::uuid[]) AND p.is_paid = false`)).
		WithArgs("c-1,c-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q(`LIMIT $2 OFFSET $3`)).WithArgs("c-1,c-2", 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("p-1", "c-1", "u-owner", "t", "b", "", false, int64(0), "SUBSCRIBERS", settledAt))
	mock.ExpectCommit()

	items, total, err = s.ListPosts(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, models.PostRef("p-1"), items[0].Ref)
	assert.Equal(t, models.TierSubscribers, items[0].Visibility)
}

func TestBuildPostFilter(t *testing.T) {
	where, args := buildPostFilter(models.PostFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildPostFilter(models.PostFilter{Tiers: []models.Tier{models.TierPublic, models.TierSubscribers}, ExcludePaid: true})
	assert.Equal(t, " WHERE p.visibility = ANY(string_to_array($1, ',')) AND p.is_paid = false AND p.visibility <> 'PAID'", where)
	assert.Equal(t, []any{"PUBLIC,SUBSCRIBERS"}, args)
}

func TestDeleteSubscription(t *testing.T) {
	s, mock := newMock(t)
	query := q(`DELETE FROM subscriptions WHERE user_id = $1 AND creator_id = $2`)

	mock.ExpectExec(query).WithArgs("u-fan", "c-1").WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := s.DeleteSubscription(context.Background(), "u-fan", "c-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mock.ExpectExec(query).WithArgs("u-fan", "c-1").WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = s.DeleteSubscription(context.Background(), "u-fan", "c-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkSettled(t *testing.T) {
	update := q(`UPDATE transactions SET status = $1, settled_at = $2`)

	t.Run("completed", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(`SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(update).WithArgs("completed", settledAt, "t-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q(`RELEASE SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.SettlementTx) error {
			return tx.MarkSettled(ctx, "t-1", models.StatusCompleted, settledAt)
		})
		require.NoError(t, err)
	})

	t.Run("duplicate purchase then failed", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(`SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(update).WithArgs("completed", settledAt, "t-2").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraintCompletedPurchase})
		mock.ExpectExec(q(`ROLLBACK TO SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(q(`SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(update).WithArgs("failed", settledAt, "t-2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q(`RELEASE SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.SettlementTx) error {
			err := tx.MarkSettled(ctx, "t-2", models.StatusCompleted, settledAt)
			require.ErrorIs(t, err, models.ErrAlreadyPurchased)
			return tx.MarkSettled(ctx, "t-2", models.StatusFailed, settledAt)
		})
		require.NoError(t, err)
	})

	t.Run("already terminal", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(`SAVEPOINT mark_settled`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(update).WithArgs("failed", settledAt, "t-1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.SettlementTx) error {
			return tx.MarkSettled(ctx, "t-1", models.StatusFailed, settledAt)
		})
		assert.ErrorIs(t, err, models.ErrConflictingSettlement)
	})
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := s.RunInTx(context.Background(), func(context.Context, storage.SettlementTx) error { return boom })
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin().WillReturnError(boom)
	err = s.RunInTx(context.Background(), func(context.Context, storage.SettlementTx) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestExtendSubscription(t *testing.T) {
	s, mock := newMock(t)
	expires := settledAt.Add(models.SubscriptionPeriod)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`ON CONFLICT (user_id, creator_id) DO UPDATE`)).
		WithArgs("u-fan", "c-1", settledAt, models.SubscriptionPeriod.Seconds()).
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(expires))
	mock.ExpectCommit()

	var got time.Time
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.SettlementTx) error {
		var err error
		got, err = tx.ExtendSubscription(ctx, "u-fan", "c-1", settledAt, models.SubscriptionPeriod)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, expires, got)
}

func TestCanceledContext(t *testing.T) {
	s, _ := newMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetPost(ctx, "p-1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.ListActiveCreatorIDs(ctx, "u-fan", settledAt)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.CreateTransaction(ctx, models.Transaction{}), context.Canceled)
}

func TestCheckDatabaseReady(t *testing.T) {
	s, mock := newMock(t)
	query := q(`SELECT EXISTS (`)

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	assert.NoError(t, s.CheckDatabaseReady(context.Background()))

	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	assert.Error(t, s.CheckDatabaseReady(context.Background()))
}
