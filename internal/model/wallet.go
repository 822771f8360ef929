package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultCurrency is applied to wallets created without an explicit
// currency code.
const DefaultCurrency = "NGN"

type Wallet struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"userId"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'" json:"balance"`
	Currency  string          `gorm:"size:3;not null;default:'NGN'" json:"currency"`
	Frozen    bool            `gorm:"not null;default:false" json:"frozen"`
	Metadata  JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	Version   uint64          `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Wallet) TableName() string { return "wallet" }

func (w *Wallet) BeforeCreate(_ *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	return nil
}
