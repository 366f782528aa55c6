package repository

import (
	"github.com/develab/btcgate/app/models"
	"gorm.io/gorm"
)

// TransactionRepository defines the data access for gateway transactions.
// AdvanceStatus is the storage level guard against concurrent webhook
// deliveries: it only succeeds when txn_status still holds the value the
// caller read.
type TransactionRepository interface {
	Create(txn *models.Transaction) error
	GetByID(id uint) (*models.Transaction, error)
	GetByTxnID(txnID string) (*models.Transaction, error)
	LatestForInvoice(invoiceID uint) (*models.Transaction, error)
	Update(txn *models.Transaction) error
	AdvanceStatus(txnID, fromEventType, toEventType, toStatus, rawPayload string) (bool, error)
}

// InvoiceRepository defines read access to host billing invoices.
type InvoiceRepository interface {
	GetByID(id uint) (*models.Invoice, error)
	GetByHash(hash string) (*models.Invoice, error)
}

// ClientRepository defines read access to billing clients.
type ClientRepository interface {
	GetByID(id uint) (*models.Client, error)
}

// WebhookEventRepository persists webhook delivery audit rows with
// insert-if-not-exists semantics keyed by (provider, provider_event_id).
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Transaction  TransactionRepository
	Invoice      InvoiceRepository
	Client       ClientRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Transaction:  NewTransactionRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Client:       NewClientRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
