package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeSwap       TransactionType = "swap"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

const (
	CurrencyBONK = "BONK"
	CurrencyUSDT = "USDT"
)

// Transaction is an append-only ledger entry for a swap or a withdrawal.
type Transaction struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	UserEmail       string          `gorm:"index;not null;uniqueIndex:idx_tx_idempotency,priority:1" json:"user_email"`
	TransactionType TransactionType `gorm:"not null" json:"transaction_type"`
	FromCurrency    string          `gorm:"not null" json:"from_currency"`
	ToCurrency      string          `gorm:"not null" json:"to_currency"`
	AmountFrom      decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount_from"`
	AmountTo        decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount_to"`

	// swap only
	FeeAmount    *decimal.Decimal `gorm:"type:numeric(20,4)" json:"fee_amount,omitempty"`
	ExchangeRate *decimal.Decimal `gorm:"type:numeric(20,8)" json:"exchange_rate,omitempty"`

	// withdrawal only
	WalletAddress   string `json:"wallet_address,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`

	Status TransactionStatus `gorm:"not null" json:"status"`

	// IdempotencyKey is nil when the client did not send one.
	IdempotencyKey *string `gorm:"uniqueIndex:idx_tx_idempotency,priority:2" json:"idempotency_key,omitempty"`
	ParamsVersion  string  `json:"params_version,omitempty"`

	Timestamps
}

func (Transaction) Collection() Collection { return CollectionTransaction }

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	newID(&t.ID)
	return nil
}
