package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction statuses. Only StatusPending has outgoing transitions.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Transaction types.
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypeTransfer   = "transfer"
)

// Metadata keys carried on transfer records. The primary
// BalanceBefore/After columns describe the initiating wallet only, so
// the receiving side's snapshot travels in metadata.
const (
	MetaReceiverBalanceBefore = "receiverBalanceBefore"
	MetaReceiverBalanceAfter  = "receiverBalanceAfter"
)

// Transaction is the immutable ledger entry. FromWalletID is nil for
// pure deposits, ToWalletID is nil for pure withdrawals. Once the
// status leaves pending the record is terminal; a reversal is a new
// linked record, never a mutation of this one.
type Transaction struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         *uuid.UUID      `gorm:"type:uuid;index" json:"userId,omitempty"`
	FromWalletID   *uuid.UUID      `gorm:"type:uuid;index" json:"fromWalletId,omitempty"`
	ToWalletID     *uuid.UUID      `gorm:"type:uuid;index" json:"toWalletId,omitempty"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Description    string          `gorm:"size:255;not null" json:"description"`
	Fee            decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'" json:"fee"`
	BalanceBefore  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balanceBefore"`
	BalanceAfter   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balanceAfter"`
	Currency       string          `gorm:"size:3;not null;default:'NGN'" json:"currency"`
	Status         string          `gorm:"size:16;not null;default:'pending';index" json:"status"`
	Type           string          `gorm:"size:16;not null;index" json:"type"`
	Reference      string          `gorm:"size:32;not null;uniqueIndex" json:"reference"`
	IdempotencyKey *string         `gorm:"size:64;index" json:"-"`
	Metadata       JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	ReversalOf     *uuid.UUID      `gorm:"type:uuid" json:"reversalOf,omitempty"`
	Settled        bool            `gorm:"not null;default:false" json:"settled"`
	FailureReason  string          `gorm:"size:255" json:"failureReason,omitempty"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
	LastModifiedBy *uuid.UUID      `gorm:"type:uuid" json:"lastModifiedBy,omitempty"`
	LastModifiedAt *time.Time      `json:"lastModifiedAt,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Transaction) TableName() string { return "transaction" }

func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Currency == "" {
		t.Currency = DefaultCurrency
	}
	return nil
}

// Terminal reports whether the record accepts no further status
// transitions.
func (t *Transaction) Terminal() bool { return t.Status != StatusPending }
