package wallet_test

import (
	"context"
	"errors"
	"testing"

	"arena-ace/internal/model"
	"arena-ace/internal/service/outbox"
	"arena-ace/internal/service/settings"
	"arena-ace/internal/service/wallet"
	"arena-ace/internal/testutil"
	appErr "arena-ace/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, *wallet.Service, *settings.Service) {
	t.Helper()
	db := testutil.NewDB(t)
	settingsSvc := settings.NewService(db)
	return db, wallet.NewService(db, settingsSvc), settingsSvc
}

func TestNormalizeUTR(t *testing.T) {
	utr, err := wallet.NormalizeUTR("  abc123def456 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123DEF456", utr)

	for _, bad := range []string{"", "12345", "1234567890123", "12345678901!", "123456 78901"} {
		_, err := wallet.NormalizeUTR(bad)
		assert.ErrorIs(t, err, appErr.ErrInvalidUTR, bad)
	}
}

func TestSubmitDepositRules(t *testing.T) {
	db, svc, settingsSvc := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)

	_, err := settingsSvc.Update(ctx, settings.UpdateParams{MinDeposit: testutil.Money("50")}, "admin")
	require.NoError(t, err)

	_, err = svc.SubmitDeposit(ctx, user.ID, testutil.Money("0"), "123456789012")
	assert.ErrorIs(t, err, appErr.ErrInvalidAmount)

	_, err = svc.SubmitDeposit(ctx, user.ID, testutil.Money("49.99"), "123456789012")
	assert.ErrorIs(t, err, appErr.ErrBelowMinimum)

	req, err := svc.SubmitDeposit(ctx, user.ID, testutil.Money("50"), "123456789012")
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)

	_, err = svc.SubmitDeposit(ctx, user.ID, testutil.Money("75"), " 123456789012")
	assert.ErrorIs(t, err, appErr.ErrDuplicateUTR)

	_, err = svc.SubmitDeposit(ctx, "ghost", testutil.Money("75"), "999999999999")
	assert.ErrorIs(t, err, appErr.ErrUserNotFound)

	assert.True(t, testutil.Balance(t, db, user.ID).IsZero())
}

func TestApproveDepositCreditsOnce(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "10", model.RoleUser)

	req, err := svc.SubmitDeposit(ctx, user.ID, testutil.Money("100"), "UTR000000001")
	require.NoError(t, err)

	resolved, err := svc.ResolveDeposit(ctx, req.ID, user.ID, testutil.Money("100"), model.RequestApproved, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, resolved.Status)
	assert.True(t, testutil.Balance(t, db, user.ID).Equal(testutil.Money("110")))

	_, err = svc.ResolveDeposit(ctx, req.ID, user.ID, testutil.Money("100"), model.RequestApproved, "admin-1")
	assert.ErrorIs(t, err, appErr.ErrRequestAlreadyResolved)
	assert.True(t, testutil.Balance(t, db, user.ID).Equal(testutil.Money("110")))

	txs := testutil.Transactions(t, db, user.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, model.KindDeposit, txs[0].Kind)
	assert.Equal(t, req.ID, txs[0].RefID)

	var events []model.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, outbox.KindUserNotify, events[0].Kind)
	assert.Equal(t, "deposit:"+req.ID, events[0].DedupKey)
}

func TestResolveDepositMismatchAndReject(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "0", model.RoleUser)
	other := testutil.SeedUser(t, db, "Ravi", "0", model.RoleUser)

	req, err := svc.SubmitDeposit(ctx, user.ID, testutil.Money("100"), "UTR000000002")
	require.NoError(t, err)

	_, err = svc.ResolveDeposit(ctx, req.ID, other.ID, testutil.Money("100"), model.RequestApproved, "admin")
	assert.ErrorIs(t, err, appErr.ErrRequestMismatch)
	_, err = svc.ResolveDeposit(ctx, req.ID, user.ID, testutil.Money("1000"), model.RequestApproved, "admin")
	assert.ErrorIs(t, err, appErr.ErrRequestMismatch)
	_, err = svc.ResolveDeposit(ctx, req.ID, user.ID, testutil.Money("100"), "maybe", "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidRequestStatus)
	_, err = svc.ResolveDeposit(ctx, "missing", user.ID, testutil.Money("100"), model.RequestApproved, "admin")
	assert.ErrorIs(t, err, appErr.ErrRequestNotFound)

	resolved, err := svc.ResolveDeposit(ctx, req.ID, user.ID, testutil.Money("100"), model.RequestRejected, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, resolved.Status)
	assert.True(t, testutil.Balance(t, db, user.ID).IsZero())
	assert.Empty(t, testutil.Transactions(t, db, user.ID))

	_, err = svc.ResolveDeposit(ctx, req.ID, user.ID, testutil.Money("100"), model.RequestApproved, "admin")
	assert.ErrorIs(t, err, appErr.ErrRequestAlreadyResolved)
}

func TestWithdrawalLifecycle(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "300", model.RoleUser)

	_, err := svc.SubmitWithdrawal(ctx, user.ID, testutil.Money("100"), "bad-upi")
	assert.ErrorIs(t, err, appErr.ErrInvalidUPI)

	_, err = svc.SubmitWithdrawal(ctx, user.ID, testutil.Money("500"), "asha@okaxis")
	assert.ErrorIs(t, err, appErr.ErrInsufficientBalance)

	req, err := svc.SubmitWithdrawal(ctx, user.ID, testutil.Money("200"), "asha@okaxis")
	require.NoError(t, err)
	assert.True(t, testutil.Balance(t, db, user.ID).Equal(testutil.Money("300")))

	resolved, err := svc.ResolveWithdrawal(ctx, req.ID, model.RequestApproved, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RequestApproved, resolved.Status)
	assert.True(t, testutil.Balance(t, db, user.ID).Equal(testutil.Money("100")))

	txs := testutil.Transactions(t, db, user.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, model.TxDebit, txs[0].Type)
	assert.Equal(t, model.KindWithdrawal, txs[0].Kind)
}

func TestApproveWithdrawalWithoutFundsStaysPending(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "100", model.RoleUser)

	req, err := svc.SubmitWithdrawal(ctx, user.ID, testutil.Money("100"), "asha@okaxis")
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("wallet_balance", testutil.Money("20")).Error)

	_, err = svc.ResolveWithdrawal(ctx, req.ID, model.RequestApproved, "admin")
	var shortfall *appErr.InsufficientBalanceError
	require.True(t, errors.As(err, &shortfall))

	var stored model.WithdrawalRequest
	require.NoError(t, db.First(&stored, "id = ?", req.ID).Error)
	assert.Equal(t, model.RequestPending, stored.Status)

	var events int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestAdjustBalance(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "50", model.RoleUser)

	_, err := svc.AdjustBalance(ctx, user.ID, testutil.Money("20"), model.TxCredit, "admin")
	require.NoError(t, err)
	_, err = svc.AdjustBalance(ctx, user.ID, testutil.Money("70"), model.TxDebit, "admin")
	require.NoError(t, err)
	assert.True(t, testutil.Balance(t, db, user.ID).IsZero())

	_, err = svc.AdjustBalance(ctx, user.ID, testutil.Money("1"), model.TxDebit, "admin")
	assert.ErrorIs(t, err, appErr.ErrInsufficientBalance)
	_, err = svc.AdjustBalance(ctx, user.ID, testutil.Money("1"), "refund", "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidAmount)
	_, err = svc.AdjustBalance(ctx, "ghost", testutil.Money("1"), model.TxCredit, "admin")
	assert.ErrorIs(t, err, appErr.ErrUserNotFound)

	view, err := svc.GetWallet(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, view.Transactions, 2)
}

func TestListRequestsFilters(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	asha := testutil.SeedUser(t, db, "Asha", "500", model.RoleUser)
	ravi := testutil.SeedUser(t, db, "Ravi", "500", model.RoleUser)

	_, err := svc.SubmitDeposit(ctx, asha.ID, testutil.Money("10"), "AAAAAAAAAAA1")
	require.NoError(t, err)
	_, err = svc.SubmitDeposit(ctx, ravi.ID, testutil.Money("10"), "AAAAAAAAAAA2")
	require.NoError(t, err)
	_, err = svc.SubmitWithdrawal(ctx, asha.ID, testutil.Money("10"), "asha@okaxis")
	require.NoError(t, err)

	page, err := svc.ListDeposits(ctx, wallet.RequestFilter{UserID: asha.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	page, err = svc.ListDeposits(ctx, wallet.RequestFilter{Status: "PENDING"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	withdrawals, err := svc.ListWithdrawals(ctx, wallet.RequestFilter{Status: model.RequestApproved})
	require.NoError(t, err)
	assert.Zero(t, withdrawals.Total)
	assert.Empty(t, withdrawals.Items)
}

func TestAdminCreditExample(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "60", model.RoleUser)

	record, err := svc.AdjustBalance(ctx, user.ID, testutil.Money("50"), model.TxCredit, "admin")
	require.NoError(t, err)
	assert.True(t, record.Amount.Equal(testutil.Money("50")))
	assert.Equal(t, model.TxCredit, record.Type)
	assert.Equal(t, model.KindAdminAdjust, record.Kind)
	assert.True(t, testutil.Balance(t, db, user.ID).Equal(testutil.Money("110")))

	page, err := svc.ListTransactions(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].BalanceBefore.Equal(testutil.Money("60")))
	assert.True(t, page.Items[0].BalanceAfter.Equal(testutil.Money("110")))
}

func TestAmountsBeyondTwoDecimalsRejected(t *testing.T) {
	db, svc, _ := newTestService(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, db, "Asha", "100", model.RoleUser)

	_, err := svc.SubmitDeposit(ctx, user.ID, testutil.Money("50.005"), "123456789012")
	assert.ErrorIs(t, err, appErr.ErrInvalidAmount)
	_, err = svc.SubmitWithdrawal(ctx, user.ID, testutil.Money("10.001"), "asha@okaxis")
	assert.ErrorIs(t, err, appErr.ErrInvalidAmount)
	_, err = svc.AdjustBalance(ctx, user.ID, testutil.Money("0.004"), model.TxCredit, "admin")
	assert.ErrorIs(t, err, appErr.ErrInvalidAmount)

	assert.True(t, testutil.Balance(t, db, user.ID).Equal(testutil.Money("100")))
	assert.Empty(t, testutil.Transactions(t, db, user.ID))
}
