package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/logger"
	"github.com/kudiwallet/ledger-service/internal/model"
)

func newTestRepo(t *testing.T) (*Repository, context.Context) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Wallet{}, &model.Transaction{}, &model.ExternalPayment{}, &model.OutboxEvent{},
	))
	rdb, _ := redismock.NewClientMock()
	log, err := logger.NewLogger()
	require.NoError(t, err)
	return NewRepository(db, rdb, &kafka.Writer{}, log), context.Background()
}

func TestUpdateWalletBalance_StaleVersionConflicts(t *testing.T) {
	r, ctx := newTestRepo(t)

	w := &model.Wallet{UserID: uuid.New(), Balance: decimal.NewFromInt(100)}
	require.NoError(t, r.CreateWallet(ctx, nil, w))

	// first writer wins
	err := r.UpdateWalletBalance(ctx, r.DB(ctx), w.ID, decimal.NewFromInt(110), w.Version)
	require.NoError(t, err)

	// second writer with the same stale version must not
	err = r.UpdateWalletBalance(ctx, r.DB(ctx), w.ID, decimal.NewFromInt(90), w.Version)
	assert.ErrorIs(t, err, errs.ErrStorageConflict)

	final, err := r.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "110.00", final.Balance.StringFixed(2))
	assert.EqualValues(t, w.Version+1, final.Version)
}

func TestUpdateWalletBalance_ConcurrentWriters(t *testing.T) {
	r, ctx := newTestRepo(t)

	w := &model.Wallet{UserID: uuid.New(), Balance: decimal.NewFromInt(100)}
	require.NoError(t, r.CreateWallet(ctx, nil, w))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.DB(ctx).Transaction(func(tx *gorm.DB) error {
				cur, err := r.GetWalletForUpdate(ctx, tx, w.ID)
				if err != nil {
					return err
				}
				return r.UpdateWalletBalance(ctx, tx, w.ID,
					cur.Balance.Add(decimal.NewFromInt(10)), cur.Version)
			})
		}()
	}
	wg.Wait()

	// regardless of interleaving, the version check keeps both
	// increments from landing on the same base balance
	final, err := r.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t,
		final.Balance.Equal(decimal.NewFromInt(110)) || final.Balance.Equal(decimal.NewFromInt(120)),
		"unexpected balance %s", final.Balance)
	if final.Balance.Equal(decimal.NewFromInt(120)) {
		assert.EqualValues(t, 2, final.Version)
	}
}

func TestCreateTransaction_DuplicateReference(t *testing.T) {
	r, ctx := newTestRepo(t)

	mk := func() *model.Transaction {
		return &model.Transaction{
			Amount:        decimal.NewFromInt(10),
			Description:   "dup check",
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.Zero,
			Status:        model.StatusCompleted,
			Type:          model.TypeTransfer,
			Reference:     "TRF-20240101-FFFFFF",
		}
	}
	require.NoError(t, r.CreateTransaction(ctx, nil, mk()))
	assert.ErrorIs(t, r.CreateTransaction(ctx, nil, mk()), errs.ErrDuplicateReference)
}

func TestCreateWallet_DuplicateUser(t *testing.T) {
	r, ctx := newTestRepo(t)

	user := uuid.New()
	require.NoError(t, r.CreateWallet(ctx, nil, &model.Wallet{UserID: user}))
	err := r.CreateWallet(ctx, nil, &model.Wallet{UserID: user})
	assert.ErrorIs(t, err, errs.ErrDuplicateWallet)
}

func TestOutbox_RoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)

	evt := &model.OutboxEvent{
		Aggregate:   "Transaction",
		AggregateID: uuid.NewString(),
		EventType:   model.EventTransferCompleted,
		Payload:     `{"amount":"10"}`,
	}
	require.NoError(t, r.CreateOutboxEvent(ctx, nil, evt))

	evts, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)

	require.NoError(t, r.MarkOutboxProcessed(ctx, evts[0].ID))
	evts, err = r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, evts)
}

func TestTransactionRecord_RoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)

	user := uuid.New()
	from, to := uuid.New(), uuid.New()
	reversal := uuid.New()
	in := &model.Transaction{
		UserID:        &user,
		FromWalletID:  &from,
		ToWalletID:    &to,
		Amount:        decimal.RequireFromString("123.45"),
		Description:   "round trip",
		Fee:           decimal.RequireFromString("2.47"),
		BalanceBefore: decimal.RequireFromString("1000.00"),
		BalanceAfter:  decimal.RequireFromString("874.08"),
		Currency:      "USD",
		Status:        model.StatusCompleted,
		Type:          model.TypeTransfer,
		Reference:     "TRF-20240102-ABC123",
		Metadata:      model.JSON{"receiverBalanceBefore": "0", "note": "x"},
		ReversalOf:    &reversal,
		Settled:       true,
	}
	require.NoError(t, r.CreateTransaction(ctx, nil, in))

	out, err := r.GetTransaction(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Reference, out.Reference)
	assert.Equal(t, "123.45", out.Amount.StringFixed(2))
	assert.Equal(t, "2.47", out.Fee.StringFixed(2))
	assert.Equal(t, "USD", out.Currency)
	assert.Equal(t, user, *out.UserID)
	assert.Equal(t, from, *out.FromWalletID)
	assert.Equal(t, to, *out.ToWalletID)
	assert.Equal(t, reversal, *out.ReversalOf)
	assert.True(t, out.Settled)
	assert.Equal(t, "x", out.Metadata["note"])
}
