package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// External payment providers recognised by webhook ingestion.
const (
	ProviderStripe      = "stripe"
	ProviderPaypal      = "paypal"
	ProviderFlutterwave = "flutterwave"
	ProviderPaystack    = "paystack"
	ProviderBank        = "bank"
	ProviderCrypto      = "crypto"
	ProviderManual      = "manual"
)

// ExternalPayment is a reconciliation shadow of a gateway-sourced
// movement. It correlates a provider notification with the internal
// transaction it settles and never owns the balance mutation. Amount
// and currency are duplicated from the internal record so the two
// sides can be compared during reconciliation.
type ExternalPayment struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"transactionId"`
	Provider          string          `gorm:"size:32;not null" json:"provider"`
	ProviderReference string          `gorm:"size:128;index" json:"providerReference"`
	ProviderData      JSON            `gorm:"type:jsonb" json:"providerData,omitempty"`
	Amount            decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency          string          `gorm:"size:3;not null;default:'NGN'" json:"currency"`
	Fee               decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'" json:"fee"`
	Status            string          `gorm:"size:16;not null;default:'pending'" json:"status"`
	GatewayResponse   string          `gorm:"size:255" json:"gatewayResponse,omitempty"`
	Attempts          int             `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt     *time.Time      `json:"lastAttemptAt,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (ExternalPayment) TableName() string { return "external_payment" }

func (p *ExternalPayment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	return nil
}
