package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BalanceTypeTransaction = "transaction"
	BalanceTypeInvoice     = "invoice"
)

// ClientBalance is one funds ledger entry. Credits are positive, debits
// negative; the client balance is the sum over all entries. RelID ties an
// entry back to the remote transaction or invoice that produced it.
type ClientBalance struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ClientID    uint            `gorm:"not null;index" json:"client_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Type        string          `gorm:"type:varchar(30);not null;index" json:"type"`
	RelID       string          `gorm:"type:varchar(191);not null;default:'';index" json:"rel_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
