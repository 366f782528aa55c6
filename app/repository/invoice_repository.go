package repository

import (
	"github.com/develab/btcgate/app/models"
	"gorm.io/gorm"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) GetByID(id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.Preload("Items").First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByHash(hash string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.Preload("Items").Where("hash = ?", hash).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}
