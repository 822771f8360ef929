package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudiwallet/ledger-service/internal/errs"
	"github.com/kudiwallet/ledger-service/internal/model"
)

func seedHistory(t *testing.T, svc *LedgerService, ctx context.Context) (userA, userB uuid.UUID) {
	t.Helper()
	userA, userB = uuid.New(), uuid.New()
	rows := []model.Transaction{
		{UserID: &userA, Amount: decimal.NewFromInt(100), Fee: decimal.NewFromInt(2), Status: model.StatusCompleted, Type: model.TypeTransfer, Reference: "TRF-20240101-AAAAAA", Description: "a"},
		{UserID: &userA, Amount: decimal.NewFromInt(200), Fee: decimal.NewFromInt(4), Status: model.StatusCompleted, Type: model.TypeTransfer, Reference: "TRF-20240102-BBBBBB", Description: "b"},
		{UserID: &userA, Amount: decimal.NewFromInt(50), Fee: decimal.Zero, Status: model.StatusPending, Type: model.TypeDeposit, Reference: "DEP-20240103-CCCCCC", Description: "c"},
		{UserID: &userB, Amount: decimal.NewFromInt(300), Fee: decimal.NewFromInt(6), Status: model.StatusFailed, Type: model.TypeWithdrawal, Reference: "WDL-20240104-DDDDDD", Description: "d"},
	}
	for i := range rows {
		rows[i].BalanceBefore = decimal.Zero
		rows[i].BalanceAfter = decimal.Zero
		require.NoError(t, svc.Repo().CreateTransaction(ctx, nil, &rows[i]))
	}
	return userA, userB
}

func TestHistory_FilterByUserAndStatus(t *testing.T) {
	svc, ctx := newTestService(t)
	userA, _ := seedHistory(t, svc, ctx)

	res, err := svc.History(ctx, HistoryRequest{UserID: &userA})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.TotalItems)
	assert.Len(t, res.Data, 3)

	res, err = svc.History(ctx, HistoryRequest{UserID: &userA, Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalItems)

	res, err = svc.History(ctx, HistoryRequest{Type: model.TypeWithdrawal})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalItems)
	assert.Equal(t, "WDL-20240104-DDDDDD", res.Data[0].Reference)
}

func TestHistory_Search(t *testing.T) {
	svc, ctx := newTestService(t)
	seedHistory(t, svc, ctx)

	res, err := svc.History(ctx, HistoryRequest{Search: "cccccc"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalItems)

	// matches status text too
	res, err = svc.History(ctx, HistoryRequest{Search: "failed"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalItems)
}

func TestHistory_SortAndPaginate(t *testing.T) {
	svc, ctx := newTestService(t)
	seedHistory(t, svc, ctx)

	res, err := svc.History(ctx, HistoryRequest{SortField: "amount", SortDir: "asc", PageSize: 2, Page: 1})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "50", res.Data[0].Amount.String())
	assert.Equal(t, "100", res.Data[1].Amount.String())
	assert.EqualValues(t, 4, res.TotalItems)
	assert.EqualValues(t, 2, res.TotalPages)

	res, err = svc.History(ctx, HistoryRequest{SortField: "amount", SortDir: "asc", PageSize: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "200", res.Data[0].Amount.String())
	assert.Equal(t, "300", res.Data[1].Amount.String())
}

func TestHistory_GuardRails(t *testing.T) {
	svc, ctx := newTestService(t)

	_, err := svc.History(ctx, HistoryRequest{Page: 1001})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.History(ctx, HistoryRequest{SortField: "metadata"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.History(ctx, HistoryRequest{SortDir: "sideways"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.History(ctx, HistoryRequest{Search: "<script>"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.History(ctx, HistoryRequest{Status: "archived"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	from := time.Now().Add(-400 * 24 * time.Hour)
	to := time.Now()
	_, err = svc.History(ctx, HistoryRequest{FromDate: &from, ToDate: &to})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.History(ctx, HistoryRequest{FromDate: &to, ToDate: &from})
	assert.ErrorIs(t, err, errs.ErrValidation)

	// oversize page size clamps instead of failing
	res, err := svc.History(ctx, HistoryRequest{PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.PageSize)
}

func TestStats_Aggregates(t *testing.T) {
	svc, ctx := newTestService(t)
	userA, _ := seedHistory(t, svc, ctx)

	all, err := svc.Stats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.TotalTransactions)
	assert.Equal(t, "650.00", all.TotalAmount.StringFixed(2))
	assert.Equal(t, "12.00", all.TotalFees.StringFixed(2))
	assert.EqualValues(t, 2, all.Completed)
	assert.EqualValues(t, 1, all.Pending)
	assert.EqualValues(t, 1, all.Failed)
	assert.Equal(t, "162.50", all.AverageAmount.StringFixed(2))
	assert.EqualValues(t, 4, all.TodayCount)

	mine, err := svc.Stats(ctx, StatsRequest{UserID: &userA})
	require.NoError(t, err)
	assert.EqualValues(t, 3, mine.TotalTransactions)
	assert.Equal(t, "350.00", mine.TotalAmount.StringFixed(2))
}

func TestStats_EmptySet(t *testing.T) {
	svc, ctx := newTestService(t)

	s, err := svc.Stats(ctx, StatsRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.TotalTransactions)
	assert.Equal(t, "0.00", s.TotalAmount.StringFixed(2))
	assert.Equal(t, "0.00", s.AverageAmount.StringFixed(2))
}
