// Package ledger holds the balance primitives. Every function takes the caller's
// transaction so the balance write and its audit row commit together.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"arena-ace/internal/model"
	appErr "arena-ace/pkg/errors"
	"arena-ace/pkg/utils/random"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scale is the number of decimal places every money column keeps.
const Scale = 2

// WithinScale reports whether d can be stored without rounding.
func WithinScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}

// CheckAmount rejects amounts that are not positive or carry more than two decimal places.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return appErr.ErrInvalidAmount
	}
	if !WithinScale(amount) {
		return fmt.Errorf("%w: at most %d decimal places", appErr.ErrInvalidAmount, Scale)
	}
	return nil
}

type Posting struct {
	UserID      string
	Amount      decimal.Decimal
	Kind        string
	Description string
	RefID       string
}

// LockUser reads the user row with a row lock held until the transaction ends.
func LockUser(tx *gorm.DB, userID string) (*model.User, error) {
	var user model.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func Credit(tx *gorm.DB, p Posting) (*model.Transaction, error) {
	return apply(tx, p, model.TxCredit)
}

// Debit fails with *appErr.InsufficientBalanceError, writing nothing, when the balance cannot cover the amount.
func Debit(tx *gorm.DB, p Posting) (*model.Transaction, error) {
	return apply(tx, p, model.TxDebit)
}

func apply(tx *gorm.DB, p Posting, direction string) (*model.Transaction, error) {
	if err := CheckAmount(p.Amount); err != nil {
		return nil, err
	}

	user, err := LockUser(tx, p.UserID)
	if err != nil {
		return nil, err
	}

	before := user.WalletBalance
	var after decimal.Decimal
	switch direction {
	case model.TxCredit:
		after = before.Add(p.Amount)
	case model.TxDebit:
		if before.LessThan(p.Amount) {
			return nil, &appErr.InsufficientBalanceError{
				UserID:    user.ID,
				Available: before,
				Requested: p.Amount,
			}
		}
		after = before.Sub(p.Amount)
	}

	now := time.Now()
	if err := tx.Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"wallet_balance": after,
			"updated_at":     now,
		}).Error; err != nil {
		return nil, err
	}

	record := &model.Transaction{
		UserID:        user.ID,
		Amount:        p.Amount,
		Type:          direction,
		Kind:          p.Kind,
		Status:        model.TxStatusCompleted,
		Description:   p.Description,
		BalanceBefore: before,
		BalanceAfter:  after,
		RefID:         p.RefID,
		Reference:     random.Reference("TX"),
		CreatedAt:     now,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}
