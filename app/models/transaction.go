package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusExpired   = "expired"
	TransactionStatusFailed    = "failed"
)

// Transaction mirrors one BTCPay invoice and tracks its settlement state.
// TxnStatus holds the last processed remote event type and doubles as the
// dedupe marker for redelivered webhooks.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"not null;index:ux_transactions_invoice_txn,unique,priority:1" json:"invoice_id"`
	GatewayID   uint            `gorm:"not null;index" json:"gateway_id"`
	TxnID       string          `gorm:"type:varchar(191);not null;uniqueIndex;index:ux_transactions_invoice_txn,unique,priority:2" json:"txn_id"`
	TxnStatus   string          `gorm:"type:varchar(100);not null;default:''" json:"txn_status"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string          `gorm:"type:varchar(10);not null" json:"currency"`
	ValidateIPN bool            `gorm:"column:validate_ipn;default:true" json:"validate_ipn"`
	IPN         string          `gorm:"column:ipn;type:longtext" json:"ipn"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSucceeded || t.Status == TransactionStatusExpired || t.Status == TransactionStatusFailed
}
