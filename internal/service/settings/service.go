package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"arena-ace/internal/model"
	"arena-ace/internal/service/ledger"
	appErr "arena-ace/pkg/errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db *gorm.DB
}

type UpdateParams struct {
	UPIID           string
	PayeeName       string
	QRCodeURL       string
	MinDeposit      decimal.Decimal
	MinWithdrawal   decimal.Decimal
	ExpectedVersion *int
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Current reads the newest version from the database on every call. Before the first
// update it returns version 0 with zero minimums.
func (s *Service) Current(ctx context.Context) (*model.PaymentSettings, error) {
	return latest(s.db.WithContext(ctx))
}

// Update appends version n+1. A stale ExpectedVersion is rejected with ErrStaleSettings.
func (s *Service) Update(ctx context.Context, params UpdateParams, actorID string) (*model.PaymentSettings, error) {
	params.UPIID = strings.TrimSpace(params.UPIID)
	params.PayeeName = strings.TrimSpace(params.PayeeName)
	params.QRCodeURL = strings.TrimSpace(params.QRCodeURL)
	if params.MinDeposit.IsNegative() || params.MinWithdrawal.IsNegative() {
		return nil, fmt.Errorf("%w: minimums must be >= 0", appErr.ErrInvalidSettings)
	}
	if !ledger.WithinScale(params.MinDeposit) || !ledger.WithinScale(params.MinWithdrawal) {
		return nil, fmt.Errorf("%w: minimums allow at most %d decimal places", appErr.ErrInvalidSettings, ledger.Scale)
	}
	if params.UPIID != "" && !ValidUPI(params.UPIID) {
		return nil, fmt.Errorf("%w: upiId", appErr.ErrInvalidSettings)
	}

	var next *model.PaymentSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := latest(tx.Clauses(clause.Locking{Strength: "UPDATE"}))
		if err != nil {
			return err
		}
		if params.ExpectedVersion != nil && *params.ExpectedVersion != current.Version {
			return appErr.ErrStaleSettings
		}

		next = &model.PaymentSettings{
			Version:       current.Version + 1,
			UPIID:         params.UPIID,
			PayeeName:     params.PayeeName,
			QRCodeURL:     params.QRCodeURL,
			MinDeposit:    params.MinDeposit,
			MinWithdrawal: params.MinWithdrawal,
			UpdatedBy:     actorID,
		}
		if err := tx.Create(next).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return appErr.ErrStaleSettings
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func latest(db *gorm.DB) (*model.PaymentSettings, error) {
	var current model.PaymentSettings
	err := db.Order("version DESC").First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.PaymentSettings{MinDeposit: decimal.Zero, MinWithdrawal: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &current, nil
}

// ValidUPI checks the handle@provider shape of a UPI virtual payment address.
func ValidUPI(v string) bool {
	at := strings.IndexByte(v, '@')
	if at < 2 || at != strings.LastIndexByte(v, '@') || len(v)-at-1 < 2 {
		return false
	}
	for i, r := range v {
		if i == at {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case i < at && (r == '.' || r == '-' || r == '_'):
		default:
			return false
		}
	}
	return true
}
