package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceStatusUnpaid = "unpaid"
	InvoiceStatusPaid   = "paid"
)

// Invoice is the host billing invoice the gateway collects payment for.
// The gateway reads it and marks it paid through the billing service; it
// never changes the invoice structurally.
type Invoice struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ClientID  uint            `gorm:"not null;index" json:"client_id"`
	GatewayID uint            `gorm:"not null" json:"gateway_id"`
	Serie     string          `gorm:"type:varchar(10);not null;default:''" json:"serie"`
	Nr        int             `gorm:"not null" json:"nr"`
	Hash      string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"hash"`
	Currency  string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status    string          `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"status"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"subtotal"`
	TaxTotal  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"tax_total"`
	PaidAt    *time.Time      `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	BuyerFirstName string `gorm:"type:varchar(100)" json:"buyer_first_name"`
	BuyerLastName  string `gorm:"type:varchar(100)" json:"buyer_last_name"`
	BuyerEmail     string `gorm:"type:varchar(191)" json:"buyer_email"`
	BuyerAddress   string `gorm:"type:varchar(255)" json:"buyer_address"`
	BuyerCity      string `gorm:"type:varchar(100)" json:"buyer_city"`
	BuyerState     string `gorm:"type:varchar(100)" json:"buyer_state"`
	BuyerZip       string `gorm:"type:varchar(20)" json:"buyer_zip"`
	BuyerCountry   string `gorm:"type:varchar(2)" json:"buyer_country"`
	BuyerPhone     string `gorm:"type:varchar(30)" json:"buyer_phone"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

// InvoiceItem is a single line on an invoice. Only the title is used here,
// for the human readable checkout description.
type InvoiceItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	InvoiceID uint            `gorm:"not null;index" json:"invoice_id"`
	Title     string          `gorm:"type:varchar(255);not null" json:"title"`
	Price     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TotalWithTax returns the tax inclusive invoice total.
func (i *Invoice) TotalWithTax() decimal.Decimal {
	return i.Subtotal.Add(i.TaxTotal)
}
