package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// not found
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRequestNotFound      = errors.New("request not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrResultNotFound       = errors.New("result not found")
	ErrAdminNotFound        = errors.New("admin not found")
)

// validation
var (
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrInvalidSchedule         = errors.New("invalid tournament date or time")
	ErrInvalidTournament       = errors.New("invalid tournament payload")
	ErrInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrInvalidUTR              = errors.New("invalid UTR")
	ErrInvalidUPI              = errors.New("invalid UPI id")
	ErrInvalidName             = errors.New("invalid name")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidRequestStatus    = errors.New("invalid request status")
	ErrInvalidResults          = errors.New("invalid results payload")
	ErrInvalidNotification     = errors.New("invalid notification payload")
	ErrInvalidSettings         = errors.New("invalid payment settings")
	ErrBelowMinimum            = errors.New("amount below configured minimum")
)

// business rule
var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAlreadyJoined          = errors.New("you have already joined this tournament")
	ErrTournamentFull         = errors.New("tournament is full")
	ErrTournamentClosed       = errors.New("tournament is not open for entries")
	ErrRequestAlreadyResolved = errors.New("request already resolved")
	ErrRequestMismatch        = errors.New("request details do not match")
	ErrDuplicateUTR           = errors.New("this UTR has already been submitted")
	ErrSelfRoleChange         = errors.New("you cannot change your own role")
	ErrResultAlreadyDeclared  = errors.New("result already declared for this tournament")
	ErrStaleSettings          = errors.New("payment settings were changed by someone else")
)

// auth
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidAdminPassword = errors.New("invalid email or password")
	ErrAdminDisabled        = errors.New("account is not an admin")
)

// InsufficientBalanceError carries the balance shortfall of a rejected debit.
type InsufficientBalanceError struct {
	UserID    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrTournamentNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrAdminNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidTournament) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrInvalidUTR) ||
		errors.Is(err, ErrInvalidUPI) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidRequestStatus) ||
		errors.Is(err, ErrInvalidResults) ||
		errors.Is(err, ErrInvalidNotification) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrBelowMinimum)
}

func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAlreadyJoined) ||
		errors.Is(err, ErrTournamentFull) ||
		errors.Is(err, ErrTournamentClosed) ||
		errors.Is(err, ErrRequestAlreadyResolved) ||
		errors.Is(err, ErrRequestMismatch) ||
		errors.Is(err, ErrDuplicateUTR) ||
		errors.Is(err, ErrSelfRoleChange) ||
		errors.Is(err, ErrResultAlreadyDeclared) ||
		errors.Is(err, ErrStaleSettings)
}
