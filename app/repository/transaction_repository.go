package repository

import (
	"time"

	"github.com/develab/btcgate/app/models"
	"gorm.io/gorm"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(txn *models.Transaction) error {
	return r.db.Create(txn).Error
}

func (r *transactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.First(&txn, id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) GetByTxnID(txnID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.Where("txn_id = ?", txnID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) LatestForInvoice(invoiceID uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.Where("invoice_id = ?", invoiceID).Order("id DESC").First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) Update(txn *models.Transaction) error {
	return r.db.Save(txn).Error
}

// AdvanceStatus performs a compare-and-set on txn_status. The update only
// succeeds while the stored event type still equals fromEventType, so a
// concurrent delivery of the same event advances the row exactly once.
func (r *transactionRepository) AdvanceStatus(txnID, fromEventType, toEventType, toStatus, rawPayload string) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("txn_id = ? AND txn_status = ?", txnID, fromEventType).
		Updates(map[string]interface{}{
			"txn_status": toEventType,
			"status":     toStatus,
			"ipn":        rawPayload,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
