package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arena-ace/internal/model"
	"arena-ace/internal/service/ledger"
	"arena-ace/internal/service/outbox"
	"arena-ace/internal/service/settings"
	appErr "arena-ace/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize    = 20
	maxPageSize        = 100
	recentTransactions = 20
	utrLength          = 12
)

type Service struct {
	db       *gorm.DB
	settings *settings.Service
}

type Wallet struct {
	UserID       string              `json:"userId"`
	Balance      decimal.Decimal     `json:"walletBalance"`
	Transactions []model.Transaction `json:"transactions"`
}

type RequestFilter struct {
	Page   int
	Size   int
	Status string
	UserID string
}

type DepositPage struct {
	Items []model.WalletRequest `json:"items"`
	Total int64                 `json:"total"`
}

type WithdrawalPage struct {
	Items []model.WithdrawalRequest `json:"items"`
	Total int64                     `json:"total"`
}

type TransactionPage struct {
	Items []model.Transaction `json:"items"`
	Total int64               `json:"total"`
}

func NewService(db *gorm.DB, settingsSvc *settings.Service) *Service {
	return &Service{db: db, settings: settingsSvc}
}

func (f *RequestFilter) sanitize() {
	f.Page, f.Size = pageBounds(f.Page, f.Size)
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.UserID = strings.TrimSpace(f.UserID)
}

func pageBounds(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func applyRequestFilters(db *gorm.DB, filter RequestFilter) *gorm.DB {
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		db = db.Where("user_id = ?", filter.UserID)
	}
	return db
}

func (s *Service) GetWallet(ctx context.Context, userID string) (*Wallet, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}

	var txs []model.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(recentTransactions).
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return &Wallet{UserID: user.ID, Balance: user.WalletBalance, Transactions: txs}, nil
}

// AdjustBalance applies an admin credit or debit through the ledger.
func (s *Service) AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal, txType, actorID string) (*model.Transaction, error) {
	if err := ledger.CheckAmount(amount); err != nil {
		return nil, err
	}

	var record *model.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posting := ledger.Posting{
			UserID:      userID,
			Amount:      amount,
			Kind:        model.KindAdminAdjust,
			Description: "Balance adjusted by admin",
			RefID:       actorID,
		}
		var err error
		switch txType {
		case model.TxCredit:
			record, err = ledger.Credit(tx, posting)
		case model.TxDebit:
			record, err = ledger.Debit(tx, posting)
		default:
			err = fmt.Errorf("%w: type must be credit or debit", appErr.ErrInvalidAmount)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// NormalizeUTR trims and upper-cases a UTR and checks it is exactly 12 letters or digits.
func NormalizeUTR(utr string) (string, error) {
	utr = strings.ToUpper(strings.TrimSpace(utr))
	if len(utr) != utrLength {
		return "", fmt.Errorf("%w: must be %d characters", appErr.ErrInvalidUTR, utrLength)
	}
	for _, r := range utr {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z') {
			return "", fmt.Errorf("%w: only letters and digits are allowed", appErr.ErrInvalidUTR)
		}
	}
	return utr, nil
}

func (s *Service) SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, utr string) (*model.WalletRequest, error) {
	if err := ledger.CheckAmount(amount); err != nil {
		return nil, err
	}
	utr, err := NormalizeUTR(utr)
	if err != nil {
		return nil, err
	}
	current, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(current.MinDeposit) {
		return nil, fmt.Errorf("%w: minimum deposit is %s", appErr.ErrBelowMinimum, current.MinDeposit.StringFixed(2))
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	req := &model.WalletRequest{
		UserID: userID,
		Amount: amount,
		UTR:    utr,
		Status: model.RequestPending,
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, appErr.ErrDuplicateUTR
		}
		return nil, err
	}
	return req, nil
}

// SubmitWithdrawal checks the balance at submission time but places no hold on it.
func (s *Service) SubmitWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, upiID string) (*model.WithdrawalRequest, error) {
	if err := ledger.CheckAmount(amount); err != nil {
		return nil, err
	}
	upiID = strings.TrimSpace(upiID)
	if !settings.ValidUPI(upiID) {
		return nil, appErr.ErrInvalidUPI
	}
	current, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(current.MinWithdrawal) {
		return nil, fmt.Errorf("%w: minimum withdrawal is %s", appErr.ErrBelowMinimum, current.MinWithdrawal.StringFixed(2))
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	if user.WalletBalance.LessThan(amount) {
		return nil, &appErr.InsufficientBalanceError{UserID: user.ID, Available: user.WalletBalance, Requested: amount}
	}

	req := &model.WithdrawalRequest{
		UserID: userID,
		Amount: amount,
		UPIID:  upiID,
		Status: model.RequestPending,
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveDeposit settles a pending deposit. The caller's userID and amount must match the
// stored request, and approval credits the wallet in the same transaction.
func (s *Service) ResolveDeposit(ctx context.Context, requestID, userID string, amount decimal.Decimal, status, actorID string) (*model.WalletRequest, error) {
	if status != model.RequestApproved && status != model.RequestRejected {
		return nil, appErr.ErrInvalidRequestStatus
	}

	var req model.WalletRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrRequestNotFound
			}
			return err
		}
		if req.Status != model.RequestPending {
			return appErr.ErrRequestAlreadyResolved
		}
		if req.UserID != userID || !req.Amount.Equal(amount) {
			return appErr.ErrRequestMismatch
		}

		if err := markResolved(tx, &model.WalletRequest{}, req.ID, status, actorID); err != nil {
			return err
		}
		req.Status = status
		req.ResolvedBy = actorID

		title, message := "Deposit rejected", fmt.Sprintf("Your deposit of Rs %s (UTR %s) was rejected.", req.Amount.StringFixed(2), req.UTR)
		if status == model.RequestApproved {
			if _, err := ledger.Credit(tx, ledger.Posting{
				UserID:      req.UserID,
				Amount:      req.Amount,
				Kind:        model.KindDeposit,
				Description: "Deposit via UTR " + req.UTR,
				RefID:       req.ID,
			}); err != nil {
				return err
			}
			title, message = "Deposit approved", fmt.Sprintf("Rs %s has been added to your wallet.", req.Amount.StringFixed(2))
		}
		return outbox.Enqueue(tx, outbox.KindUserNotify, "deposit:"+req.ID, outbox.NotifyPayload{
			UserID:  req.UserID,
			Title:   title,
			Message: message,
		})
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ResolveWithdrawal settles a pending withdrawal. If the balance no longer covers an
// approval the request stays pending and the shortfall error is returned.
func (s *Service) ResolveWithdrawal(ctx context.Context, requestID, status, actorID string) (*model.WithdrawalRequest, error) {
	if status != model.RequestApproved && status != model.RequestRejected {
		return nil, appErr.ErrInvalidRequestStatus
	}

	var req model.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.ErrRequestNotFound
			}
			return err
		}
		if req.Status != model.RequestPending {
			return appErr.ErrRequestAlreadyResolved
		}

		title, message := "Withdrawal rejected", fmt.Sprintf("Your withdrawal of Rs %s was rejected.", req.Amount.StringFixed(2))
		if status == model.RequestApproved {
			if _, err := ledger.Debit(tx, ledger.Posting{
				UserID:      req.UserID,
				Amount:      req.Amount,
				Kind:        model.KindWithdrawal,
				Description: "Withdrawal to " + req.UPIID,
				RefID:       req.ID,
			}); err != nil {
				return err
			}
			title, message = "Withdrawal approved", fmt.Sprintf("Rs %s is on its way to %s.", req.Amount.StringFixed(2), req.UPIID)
		}

		if err := markResolved(tx, &model.WithdrawalRequest{}, req.ID, status, actorID); err != nil {
			return err
		}
		req.Status = status
		req.ResolvedBy = actorID

		return outbox.Enqueue(tx, outbox.KindUserNotify, "withdrawal:"+req.ID, outbox.NotifyPayload{
			UserID:  req.UserID,
			Title:   title,
			Message: message,
		})
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func markResolved(tx *gorm.DB, table interface{}, id, status, actorID string) error {
	now := time.Now()
	res := tx.Model(table).
		Where("id = ? AND status = ?", id, model.RequestPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_by": actorID,
			"resolved_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appErr.ErrRequestAlreadyResolved
	}
	return nil
}

func (s *Service) ListDeposits(ctx context.Context, filter RequestFilter) (*DepositPage, error) {
	filter.sanitize()

	var total int64
	if err := applyRequestFilters(s.db.WithContext(ctx).Model(&model.WalletRequest{}), filter).
		Count(&total).Error; err != nil {
		return nil, err
	}
	var items []model.WalletRequest
	if err := applyRequestFilters(s.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Size).
		Limit(filter.Size).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &DepositPage{Items: items, Total: total}, nil
}

func (s *Service) ListWithdrawals(ctx context.Context, filter RequestFilter) (*WithdrawalPage, error) {
	filter.sanitize()

	var total int64
	if err := applyRequestFilters(s.db.WithContext(ctx).Model(&model.WithdrawalRequest{}), filter).
		Count(&total).Error; err != nil {
		return nil, err
	}
	var items []model.WithdrawalRequest
	if err := applyRequestFilters(s.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Size).
		Limit(filter.Size).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &WithdrawalPage{Items: items, Total: total}, nil
}

// GetDeposit loads a single deposit request, used by the follow-up advisory.
func (s *Service) GetDeposit(ctx context.Context, requestID string) (*model.WalletRequest, error) {
	var req model.WalletRequest
	if err := s.db.WithContext(ctx).First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID string, page, size int) (*TransactionPage, error) {
	page, size = pageBounds(page, size)

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, err
	}
	var items []model.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &TransactionPage{Items: items, Total: total}, nil
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return appErr.ErrUserNotFound
	}
	return nil
}
