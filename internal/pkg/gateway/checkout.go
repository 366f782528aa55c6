package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/develab/btcgate/app/models"
	"github.com/develab/btcgate/app/repository"
	"github.com/develab/btcgate/internal/pkg/billing"
	"github.com/develab/btcgate/internal/pkg/btcpay"
	"github.com/google/uuid"
)

const sessionCacheTTL = 2 * time.Minute

// RemoteClient is the slice of the BTCPay API the gateway uses.
type RemoteClient interface {
	CreateInvoice(ctx context.Context, storeID string, in *btcpay.InvoiceRequest) (*btcpay.Invoice, error)
	GetInvoice(ctx context.Context, storeID, invoiceID string) (*btcpay.Invoice, error)
}

// SessionCache is an optional short-TTL cache in front of remote invoice
// status lookups.
type SessionCache interface {
	Get(key string) (string, error)
	Set(key string, value string, ttl time.Duration) error
}

// remoteSession is the cached view of an open checkout session.
type remoteSession struct {
	Status       string `json:"status"`
	CheckoutLink string `json:"checkout_link"`
}

// CheckoutService builds hosted checkout sessions for local invoices.
type CheckoutService struct {
	cfg    *Config
	remote RemoteClient
	txns   repository.TransactionRepository
	cache  SessionCache
}

// NewCheckoutService wires a checkout builder. cache may be nil.
func NewCheckoutService(cfg *Config, remote RemoteClient, txns repository.TransactionRepository, cache SessionCache) *CheckoutService {
	return &CheckoutService{cfg: cfg, remote: remote, txns: txns, cache: cache}
}

// BuildSession returns the checkout URL the payer should be redirected to.
// When the invoice already has a pending transaction whose remote session is
// still open, that session is reused instead of creating a second remote
// invoice. Otherwise a remote invoice is created and a pending Transaction
// persisted; exactly one remote invoice exists per checkout attempt.
func (s *CheckoutService) BuildSession(ctx context.Context, inv *models.Invoice) (string, error) {
	if link, ok := s.reuseOpenSession(ctx, inv); ok {
		return link, nil
	}

	total := inv.TotalWithTax().Round(2)
	req := &btcpay.InvoiceRequest{
		Amount:   total.StringFixed(2),
		Currency: inv.Currency,
		Metadata: s.buyerMetadata(inv),
		Checkout: btcpay.CheckoutOptions{
			SpeedPolicy:    s.cfg.SpeedPolicy(),
			PaymentMethods: s.cfg.PaymentMethods(),
			RedirectURL:    s.cfg.RedirectURL(inv.Hash),
		},
	}

	remote, err := s.remote.CreateInvoice(ctx, s.cfg.StoreID, req)
	if err != nil {
		return "", err
	}

	audit, _ := json.Marshal(remote)
	txn := &models.Transaction{
		InvoiceID:   inv.ID,
		GatewayID:   inv.GatewayID,
		TxnID:       remote.ID,
		TxnStatus:   remote.Status,
		Status:      models.TransactionStatusPending,
		Amount:      total,
		Currency:    inv.Currency,
		ValidateIPN: true,
		IPN:         string(audit),
	}
	if err := s.txns.Create(txn); err != nil {
		return "", err
	}

	s.cacheSession(remote)
	return remote.CheckoutLink, nil
}

// reuseOpenSession checks whether a previous checkout attempt left a remote
// invoice that is still payable. Any lookup failure counts as "not open" so
// a fresh attempt is never blocked by a flaky remote.
func (s *CheckoutService) reuseOpenSession(ctx context.Context, inv *models.Invoice) (string, bool) {
	txn, err := s.txns.LatestForInvoice(inv.ID)
	if err != nil || txn.TxnID == "" || txn.Status != models.TransactionStatusPending {
		return "", false
	}

	if sess, ok := s.cachedSession(txn.TxnID); ok {
		if sess.Status == btcpay.InvoiceStatusNew && sess.CheckoutLink != "" {
			return sess.CheckoutLink, true
		}
		return "", false
	}

	remote, err := s.remote.GetInvoice(ctx, s.cfg.StoreID, txn.TxnID)
	if err != nil {
		log.Printf("[BTCPay] invoice %s status lookup failed, starting a fresh session: %v", txn.TxnID, err)
		return "", false
	}
	s.cacheSession(remote)
	if remote.Status == btcpay.InvoiceStatusNew && remote.CheckoutLink != "" {
		return remote.CheckoutLink, true
	}
	return "", false
}

func (s *CheckoutService) buyerMetadata(inv *models.Invoice) map[string]any {
	return map[string]any{
		"orderId":       newOrderRef(inv),
		"buyerName":     strings.TrimSpace(inv.BuyerFirstName + " " + inv.BuyerLastName),
		"buyerEmail":    inv.BuyerEmail,
		"buyerAddress1": inv.BuyerAddress,
		"buyerAddress2": "",
		"buyerCity":     inv.BuyerCity,
		"buyerState":    inv.BuyerState,
		"buyerZip":      inv.BuyerZip,
		"buyerCountry":  inv.BuyerCountry,
		"buyerPhone":    inv.BuyerPhone,
		"posData":       "",
		"itemDesc":      billing.InvoiceTitle(inv),
		"itemCode":      "",
		"physical":      false,
		"taxIncluded":   s.cfg.TaxIncludedRate(),
	}
}

func (s *CheckoutService) cachedSession(txnID string) (*remoteSession, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(sessionCacheKey(txnID))
	if err != nil || raw == "" {
		return nil, false
	}
	var sess remoteSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, false
	}
	return &sess, true
}

func (s *CheckoutService) cacheSession(remote *btcpay.Invoice) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(remoteSession{Status: remote.Status, CheckoutLink: remote.CheckoutLink})
	if err != nil {
		return
	}
	if err := s.cache.Set(sessionCacheKey(remote.ID), string(raw), sessionCacheTTL); err != nil {
		log.Printf("[BTCPay] could not cache session state for invoice %s: %v", remote.ID, err)
	}
}

func sessionCacheKey(txnID string) string {
	return "btcpay:invoice:" + txnID
}

// newOrderRef builds a remote order reference that is unique per checkout
// attempt, so a requeued checkout never collides with an old remote invoice.
func newOrderRef(inv *models.Invoice) string {
	return fmt.Sprintf("%s#%d", strings.ReplaceAll(uuid.NewString(), "-", "")[:13], inv.Nr)
}
