package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/develab/btcgate/app/models"
	"github.com/develab/btcgate/internal/pkg/billing"
	"github.com/develab/btcgate/internal/pkg/btcpay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "webhook-secret"

// fakeTxnRepo is an in-memory TransactionRepository keyed by remote txn id.
type fakeTxnRepo struct {
	byTxnID      map[string]*models.Transaction
	latest       map[uint]*models.Transaction
	latestErr    error
	created      []*models.Transaction
	advanceCalls []string
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{
		byTxnID: make(map[string]*models.Transaction),
		latest:  make(map[uint]*models.Transaction),
	}
}

func (f *fakeTxnRepo) Create(txn *models.Transaction) error {
	f.created = append(f.created, txn)
	f.byTxnID[txn.TxnID] = txn
	f.latest[txn.InvoiceID] = txn
	return nil
}

func (f *fakeTxnRepo) GetByID(id uint) (*models.Transaction, error) {
	for _, txn := range f.byTxnID {
		if txn.ID == id {
			return txn, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxnRepo) GetByTxnID(txnID string) (*models.Transaction, error) {
	if txn, ok := f.byTxnID[txnID]; ok {
		return txn, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxnRepo) LatestForInvoice(invoiceID uint) (*models.Transaction, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	if txn, ok := f.latest[invoiceID]; ok {
		return txn, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxnRepo) Update(txn *models.Transaction) error {
	f.byTxnID[txn.TxnID] = txn
	return nil
}

func (f *fakeTxnRepo) AdvanceStatus(txnID, fromEventType, toEventType, toStatus, rawPayload string) (bool, error) {
	f.advanceCalls = append(f.advanceCalls, fmt.Sprintf("%s:%s->%s", txnID, fromEventType, toEventType))
	txn, ok := f.byTxnID[txnID]
	if !ok || txn.TxnStatus != fromEventType {
		return false, nil
	}
	txn.TxnStatus = toEventType
	txn.Status = toStatus
	txn.IPN = rawPayload
	return true, nil
}

// fakeEventRepo is an in-memory WebhookEventRepository with the same
// insert-if-not-exists contract as the MySQL implementation.
type fakeEventRepo struct {
	seen   map[string]*models.WebhookEvent
	byID   map[uint]*models.WebhookEvent
	marked map[uint]string
	nextID uint
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		seen:   make(map[string]*models.WebhookEvent),
		byID:   make(map[uint]*models.WebhookEvent),
		marked: make(map[uint]string),
	}
}

func (f *fakeEventRepo) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.seen[key]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.seen[key] = event
	f.byID[event.ID] = event
	return true, event, nil
}

func (f *fakeEventRepo) MarkProcessed(id uint, processingError string) error {
	f.marked[id] = processingError
	if event, ok := f.byID[id]; ok {
		now := time.Now()
		event.ProcessedAt = &now
		event.ProcessingError = processingError
	}
	return nil
}

type fakeSettler struct {
	calls   []billing.SettleInput
	claimed bool
	err     error
}

func (f *fakeSettler) SettleInvoicePayment(in billing.SettleInput) (bool, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return false, f.err
	}
	return f.claimed, nil
}

func webhookTestConfig() *Config {
	cfg := &Config{
		HostURL:         "https://btcpay.example.com",
		APIKey:          "api-key",
		StoreID:         "store-1",
		IPNSecret:       testSecret,
		PaymentMethod:   "BTC",
		RedirectBaseURL: "https://billing.example.com",
	}
	return cfg
}

func signedEvent(t *testing.T, ev btcpay.Event) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw, btcpay.SignPayload(raw, testSecret)
}

func seedPendingTxn(txns *fakeTxnRepo, txnID string, invoiceID uint) *models.Transaction {
	txn := &models.Transaction{
		ID:        uint(len(txns.byTxnID) + 1),
		InvoiceID: invoiceID,
		TxnID:     txnID,
		TxnStatus: "",
		Status:    models.TransactionStatusPending,
	}
	txns.byTxnID[txnID] = txn
	txns.latest[invoiceID] = txn
	return txn
}

func TestWebhookProcess_SettlesPayment(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_1",
	})

	eventType, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, btcpay.EventInvoicePaymentSettled, eventType)

	require.Len(t, settler.calls, 1)
	in := settler.calls[0]
	assert.Equal(t, "inv_1", in.TxnID)
	assert.Equal(t, uint(7), in.InvoiceID)
	assert.Equal(t, "", in.FromEventType)
	assert.Equal(t, btcpay.EventInvoicePaymentSettled, in.EventType)
	assert.Equal(t, string(raw), in.RawPayload)

	// success marks the stored delivery processed without an error note
	require.Len(t, events.marked, 1)
	assert.Equal(t, "", events.marked[1])
}

func TestWebhookProcess_DuplicateDelivery(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)
	_, err = p.Process(context.Background(), raw, sig)
	require.NoError(t, err)

	assert.Len(t, settler.calls, 1, "duplicate delivery id must not settle twice")
}

func TestWebhookProcess_ReplayedEventType(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	txn := seedPendingTxn(txns, "inv_1", 7)
	txn.TxnStatus = btcpay.EventInvoicePaymentSettled
	txn.Status = models.TransactionStatusSucceeded

	// Fresh delivery id, same event type: the txn_status marker blocks it.
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_2",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Empty(t, settler.calls)
}

func TestWebhookProcess_InvalidSignature(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	txn := seedPendingTxn(txns, "inv_1", 7)
	raw, _ := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, "sha256=deadbeef")
	require.NoError(t, err)

	assert.Empty(t, settler.calls)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Empty(t, txns.advanceCalls)

	// the delivery is still recorded, flagged invalid
	stored := events.seen[models.WebhookProviderBTCPay+"/d_1"]
	require.NotNil(t, stored)
	assert.False(t, stored.SignatureValid)
	assert.Equal(t, "invalid webhook signature", events.marked[stored.ID])
}

func TestWebhookProcess_UnknownTransaction(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_unknown",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Empty(t, settler.calls)
}

func TestWebhookProcess_MalformedPayload(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	raw := []byte(`{"deliveryId":"d_1"}`)
	sig := btcpay.SignPayload(raw, testSecret)

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Empty(t, settler.calls)
}

func TestWebhookProcess_ExpiredEvent(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	txn := seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoiceExpired,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)

	assert.Empty(t, settler.calls)
	assert.Equal(t, models.TransactionStatusExpired, txn.Status)
	assert.Equal(t, btcpay.EventInvoiceExpired, txn.TxnStatus)
}

func TestWebhookProcess_UnhandledEventType(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	txn := seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoiceReceivedPayment,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)

	assert.Empty(t, settler.calls)
	// txn_status stays empty so a later settled event is not blocked
	assert.Equal(t, "", txn.TxnStatus)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
}

func TestWebhookProcess_SettlementFailurePropagates(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{err: errors.New("deadlock")}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
	assert.Equal(t, "deadlock", events.marked[1])
}

func TestWebhookProcess_MissingDeliveryIDDedupedByHash(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{claimed: true}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		Type:      btcpay.EventInvoicePaymentSettled,
		InvoiceID: "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.NoError(t, err)
	_, err = p.Process(context.Background(), raw, sig)
	require.NoError(t, err)

	assert.Len(t, settler.calls, 1)
}

func TestWebhookProcess_FailedDeliveryRetried(t *testing.T) {
	txns := newFakeTxnRepo()
	events := newFakeEventRepo()
	settler := &fakeSettler{err: errors.New("db down")}
	p := NewWebhookProcessor(webhookTestConfig(), txns, events, settler)

	seedPendingTxn(txns, "inv_1", 7)
	raw, sig := signedEvent(t, btcpay.Event{
		DeliveryID: "d_1",
		Type:       btcpay.EventInvoicePaymentSettled,
		InvoiceID:  "inv_1",
	})

	_, err := p.Process(context.Background(), raw, sig)
	require.Error(t, err)

	// the stored row carries the failure, so the same delivery id is not
	// absorbed as a duplicate once the settler recovers
	settler.err = nil
	settler.claimed = true
	_, err = p.Process(context.Background(), raw, sig)
	require.NoError(t, err)

	assert.Len(t, settler.calls, 2)
	assert.Equal(t, "", events.marked[1])
}
