package billing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/develab/btcgate/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInsufficientCredits is returned when an invoice cannot be covered by
// the client's ledger balance.
var ErrInsufficientCredits = errors.New("client balance does not cover the invoice total")

// SettleInput describes one verified payment-settled event to apply.
type SettleInput struct {
	TxnID         string
	InvoiceID     uint
	FromEventType string
	EventType     string
	RawPayload    string
}

// Service provides the host billing operations the gateway drives: the
// client funds ledger and paying invoices with credits.
type Service struct {
	db *gorm.DB
}

// NewService creates a billing service from a GORM DB handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Balance returns the current funds ledger sum for a client.
func (s *Service) Balance(clientID uint) (decimal.Decimal, error) {
	return ledgerBalance(s.db, clientID)
}

// AddFunds appends a credit entry to the client's funds ledger.
func (s *Service) AddFunds(clientID uint, amount decimal.Decimal, description, entryType, relID string) error {
	return addFunds(s.db, clientID, amount, description, entryType, relID)
}

// PayInvoiceWithCredits debits the invoice total from the client's ledger
// and marks the invoice paid.
func (s *Service) PayInvoiceWithCredits(invoiceID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.First(&inv, invoiceID).Error; err != nil {
			return err
		}
		return payInvoiceWithCredits(tx, &inv)
	})
}

// SettleInvoicePayment applies a payment-settled webhook event. Inside one
// database transaction it claims the gateway transaction row with a
// compare-and-set on txn_status, credits the client the invoice's tax
// inclusive total (ledger entry tagged with the remote transaction id) and
// pays the invoice with those credits. The claim and the money movement
// commit or roll back together, so a failure leaves the transaction
// unadvanced and the next redelivery retries cleanly.
//
// Returns false when another delivery already advanced the row.
func (s *Service) SettleInvoicePayment(in SettleInput) (bool, error) {
	claimed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Transaction{}).
			Where("txn_id = ? AND txn_status = ?", in.TxnID, in.FromEventType).
			Updates(map[string]interface{}{
				"txn_status": in.EventType,
				"status":     models.TransactionStatusSucceeded,
				"ipn":        in.RawPayload,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race against a concurrent delivery.
			return nil
		}
		claimed = true

		var inv models.Invoice
		if err := tx.First(&inv, in.InvoiceID).Error; err != nil {
			return err
		}

		total := inv.TotalWithTax()
		desc := fmt.Sprintf("BTCPay transaction %s", in.TxnID)
		if err := addFunds(tx, inv.ClientID, total, desc, models.BalanceTypeTransaction, in.TxnID); err != nil {
			return err
		}
		return payInvoiceWithCredits(tx, &inv)
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func addFunds(tx *gorm.DB, clientID uint, amount decimal.Decimal, description, entryType, relID string) error {
	entry := &models.ClientBalance{
		ClientID:    clientID,
		Amount:      amount,
		Description: description,
		Type:        entryType,
		RelID:       relID,
	}
	return tx.Create(entry).Error
}

func payInvoiceWithCredits(tx *gorm.DB, inv *models.Invoice) error {
	if inv.Status == models.InvoiceStatusPaid {
		return nil
	}

	total := inv.TotalWithTax()
	balance, err := ledgerBalance(tx, inv.ClientID)
	if err != nil {
		return err
	}
	if balance.LessThan(total) {
		return ErrInsufficientCredits
	}

	debit := &models.ClientBalance{
		ClientID:    inv.ClientID,
		Amount:      total.Neg(),
		Description: fmt.Sprintf("Payment for invoice %s", InvoiceRef(inv)),
		Type:        models.BalanceTypeInvoice,
		RelID:       strconv.FormatUint(uint64(inv.ID), 10),
	}
	if err := tx.Create(debit).Error; err != nil {
		return err
	}

	now := time.Now()
	return tx.Model(inv).Updates(map[string]interface{}{
		"status":  models.InvoiceStatusPaid,
		"paid_at": &now,
	}).Error
}

func ledgerBalance(tx *gorm.DB, clientID uint) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.Model(&models.ClientBalance{}).
		Where("client_id = ?", clientID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
