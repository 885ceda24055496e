package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	TournamentDraft     = "draft"
	TournamentPublished = "published"
	TournamentLive      = "live"
	TournamentCompleted = "completed"
	TournamentCancelled = "cancelled"
)

const (
	EntryConfirmed = "confirmed"
	EntryCancelled = "cancelled"
	EntryCompleted = "completed"
)

const (
	TxCredit = "credit"
	TxDebit  = "debit"

	TxStatusCompleted = "completed"
)

// Transaction kinds describe why a balance moved.
const (
	KindEntryFee    = "entry_fee"
	KindPrize       = "prize"
	KindDeposit     = "deposit"
	KindWithdrawal  = "withdrawal"
	KindAdminAdjust = "admin_adjust"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxFailed    = "failed"
)

// BroadcastTarget addresses every user when sending a notification.
const BroadcastTarget = "all"

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// 1. Profiles

type User struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Name          string          `gorm:"size:64" json:"name"`
	Email         string          `gorm:"size:255;index" json:"email"`
	WalletBalance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"walletBalance"`
	Role          string          `gorm:"size:16;not null;default:user" json:"role"`
	PasswordHash  string          `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// 2. Tournaments & entries

type Tournament struct {
	ID           string            `gorm:"primaryKey;size:64" json:"id"`
	Title        string            `gorm:"size:128;not null" json:"title"`
	Game         string            `gorm:"size:64" json:"game"`
	Slug         string            `gorm:"size:160" json:"slug"`
	Date         string            `gorm:"size:10" json:"date"` // YYYY-MM-DD
	Time         string            `gorm:"size:5" json:"time"`  // HH:MM
	ScheduledAt  *time.Time        `gorm:"index" json:"scheduledAt,omitempty"`
	EntryFee     decimal.Decimal   `gorm:"type:numeric(20,2);not null;default:0" json:"entryFee"`
	Slots        int               `json:"slots"`
	Prize        decimal.Decimal   `gorm:"type:numeric(20,2);not null;default:0" json:"prize"`
	Rules        []string          `gorm:"serializer:json" json:"rules"`
	Status       string            `gorm:"size:16;index;not null;default:draft" json:"status"`
	IsMega       bool              `json:"isMega"`
	RoomID       string            `gorm:"size:64" json:"roomId,omitempty"`
	RoomPassword string            `gorm:"size:64" json:"roomPassword,omitempty"`
	WinnerPrizes []decimal.Decimal `gorm:"serializer:json" json:"winnerPrizes"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`

	JoinedCount int64 `gorm:"-" json:"joinedCount"`
}

func (t *Tournament) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

type Entry struct {
	ID           string          `gorm:"primaryKey;size:140" json:"id"` // <tournamentID>:<userID>
	TournamentID string          `gorm:"size:64;index;not null" json:"tournamentId"`
	UserID       string          `gorm:"size:64;index;not null" json:"userId"`
	Status       string          `gorm:"size:16;not null" json:"status"`
	PaidAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"paidAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func EntryID(tournamentID, userID string) string {
	return tournamentID + ":" + userID
}

// 3. Wallet & ledger

type Transaction struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	UserID        string          `gorm:"size:64;index;not null" json:"userId"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Type          string          `gorm:"size:8;not null" json:"type"` // credit/debit
	Kind          string          `gorm:"size:32;not null" json:"kind"`
	Status        string          `gorm:"size:16;not null" json:"status"`
	Description   string          `json:"description"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balanceAfter"`
	RefID         string          `gorm:"size:140;index" json:"refId,omitempty"`
	Reference     string          `gorm:"size:16" json:"reference"`
	CreatedAt     time.Time       `gorm:"index" json:"timestamp"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

type WalletRequest struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id"`
	UserID     string          `gorm:"size:64;index;not null" json:"userId"`
	Amount     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	UTR        string          `gorm:"size:32;uniqueIndex;not null" json:"utr"`
	Status     string          `gorm:"size:16;index;not null" json:"status"`
	ResolvedBy string          `gorm:"size:64" json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (r *WalletRequest) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

type WithdrawalRequest struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id"`
	UserID     string          `gorm:"size:64;index;not null" json:"userId"`
	Amount     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	UPIID      string          `gorm:"size:64;not null" json:"upiId"`
	Status     string          `gorm:"size:16;index;not null" json:"status"`
	ResolvedBy string          `gorm:"size:64" json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (r *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// 4. Results

type RankedResult struct {
	UserID string          `json:"userId"`
	Name   string          `json:"name,omitempty"`
	Rank   int             `json:"rank"`
	Points int64           `json:"points"`
	Prize  decimal.Decimal `json:"prize"`
}

// TournamentResult is keyed by the tournament id, one declaration per tournament.
type TournamentResult struct {
	ID         string         `gorm:"primaryKey;size:64" json:"tournamentId"`
	Title      string         `json:"title"`
	IsMega     bool           `json:"isMega"`
	Results    []RankedResult `gorm:"serializer:json" json:"results"`
	DeclaredBy string         `gorm:"size:64" json:"declaredBy,omitempty"`
	DeclaredAt time.Time      `json:"declaredAt"`
}

// 5. Notifications

type Notification struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;index;not null" json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	SourceKey *string   `gorm:"size:200;uniqueIndex" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}

type Broadcast struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedBy string    `gorm:"size:64" json:"createdBy,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (b *Broadcast) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BroadcastReceipt tracks one user's read and hidden state for one broadcast.
type BroadcastReceipt struct {
	UserID      string     `gorm:"primaryKey;size:64"`
	BroadcastID string     `gorm:"primaryKey;size:64"`
	ReadAt      *time.Time
	Hidden      bool
	UpdatedAt   time.Time
}

// 6. Outbox

type OutboxEvent struct {
	ID            string         `gorm:"primaryKey;size:64" json:"id"`
	Kind          string         `gorm:"size:64;not null" json:"kind"`
	DedupKey      string         `gorm:"size:200;uniqueIndex;not null" json:"dedupKey"`
	Payload       datatypes.JSON `json:"payload"`
	Status        string         `gorm:"size:16;index;not null" json:"status"`
	Attempts      int            `json:"attempts"`
	NextAttemptAt time.Time      `gorm:"index" json:"nextAttemptAt"`
	LastError     string         `json:"lastError,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	DeliveredAt   *time.Time     `json:"deliveredAt,omitempty"`
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// 7. Config

type PaymentSettings struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Version       int             `gorm:"uniqueIndex;not null" json:"version"`
	UPIID         string          `gorm:"size:64" json:"upiId"`
	PayeeName     string          `gorm:"size:128" json:"payeeName"`
	QRCodeURL     string          `json:"qrCodeUrl"`
	MinDeposit    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"minDeposit"`
	MinWithdrawal decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"minWithdrawal"`
	UpdatedBy     string          `gorm:"size:64" json:"updatedBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (p *PaymentSettings) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// All lists every table the service owns, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Tournament{},
		&Entry{},
		&Transaction{},
		&WalletRequest{},
		&WithdrawalRequest{},
		&TournamentResult{},
		&Notification{},
		&Broadcast{},
		&BroadcastReceipt{},
		&OutboxEvent{},
		&PaymentSettings{},
	}
}
