package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"

	"github.com/develab/btcgate/app/models"
	"github.com/develab/btcgate/app/repository"
	"github.com/develab/btcgate/internal/pkg/billing"
	"github.com/develab/btcgate/internal/pkg/btcpay"
	"gorm.io/gorm"
)

// Ack is the acknowledgement body BTCPay expects. The same body is returned
// on every non-fatal branch so the sender cannot distinguish a rejected
// delivery from a processed one.
type Ack struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GenericAck is the fixed webhook acknowledgement.
var GenericAck = Ack{Code: "200", Message: "ok"}

// Settler applies the money-moving settlement for a verified payment event.
type Settler interface {
	SettleInvoicePayment(in billing.SettleInput) (bool, error)
}

// WebhookProcessor drives the transaction state machine for inbound BTCPay
// deliveries. Noise (bad signature, unknown transaction, replays) is
// absorbed behind the generic ack; persistence failures after a funds
// credit was attempted propagate so the sender redelivers.
type WebhookProcessor struct {
	cfg     *Config
	txns    repository.TransactionRepository
	events  repository.WebhookEventRepository
	settler Settler
}

// NewWebhookProcessor wires the webhook state machine.
func NewWebhookProcessor(cfg *Config, txns repository.TransactionRepository, events repository.WebhookEventRepository, settler Settler) *WebhookProcessor {
	return &WebhookProcessor{cfg: cfg, txns: txns, events: events, settler: settler}
}

// Process validates and applies one webhook delivery and reports the parsed
// event type (empty for malformed payloads). A nil error means the caller
// should answer with GenericAck; a non-nil error means the delivery was not
// handled and the sender must retry.
func (p *WebhookProcessor) Process(ctx context.Context, rawBody []byte, signatureHeader string) (string, error) {
	valid := btcpay.VerifyWebhookSignature(rawBody, signatureHeader, p.cfg.IPNSecret)
	ev, parseErr := btcpay.ParseEvent(rawBody)

	eventType, eventID := "", ""
	if parseErr == nil {
		eventType = ev.Type
		eventID = ev.DeliveryID
	}
	if eventID == "" {
		sum := sha256.Sum256(rawBody)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := p.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:        models.WebhookProviderBTCPay,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  valid,
	})
	if err != nil {
		return eventType, err
	}
	if !created {
		// Only a cleanly processed row counts as a duplicate. A row whose
		// processing failed, or that never finished, gets another attempt.
		if stored.ProcessedAt != nil && stored.ProcessingError == "" {
			log.Printf("[BTCPay] duplicate delivery %s, already processed", eventID)
			return eventType, nil
		}
		log.Printf("[BTCPay] delivery %s stored but not processed, retrying", eventID)
	}
	if !valid {
		log.Printf("[BTCPay] webhook signature validation failed for delivery %s", eventID)
		_ = p.events.MarkProcessed(stored.ID, "invalid webhook signature")
		return eventType, nil
	}
	if parseErr != nil {
		log.Printf("[BTCPay] webhook payload for delivery %s is malformed: %v", eventID, parseErr)
		_ = p.events.MarkProcessed(stored.ID, parseErr.Error())
		return eventType, nil
	}

	txn, err := p.txns.GetByTxnID(ev.InvoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[BTCPay] no local transaction for remote invoice %s, ignoring", ev.InvoiceID)
			_ = p.events.MarkProcessed(stored.ID, "no local transaction for remote invoice")
			return eventType, nil
		}
		return eventType, err
	}

	// The last processed event type blocks redelivery of the same event, so
	// at-least-once delivery can never credit funds twice.
	if txn.TxnStatus == ev.Type {
		_ = p.events.MarkProcessed(stored.ID, "")
		return eventType, nil
	}

	log.Printf("[BTCPay] transaction event type %q for remote invoice %s", ev.Type, ev.InvoiceID)
	switch ev.Type {
	case btcpay.EventInvoicePaymentSettled:
		claimed, err := p.settler.SettleInvoicePayment(billing.SettleInput{
			TxnID:         txn.TxnID,
			InvoiceID:     txn.InvoiceID,
			FromEventType: txn.TxnStatus,
			EventType:     ev.Type,
			RawPayload:    string(rawBody),
		})
		if err != nil {
			_ = p.events.MarkProcessed(stored.ID, err.Error())
			return eventType, err
		}
		if !claimed {
			log.Printf("[BTCPay] transaction %s already settled by a concurrent delivery", txn.TxnID)
		}
	case btcpay.EventInvoiceExpired:
		if _, err := p.txns.AdvanceStatus(txn.TxnID, txn.TxnStatus, ev.Type, models.TransactionStatusExpired, string(rawBody)); err != nil {
			_ = p.events.MarkProcessed(stored.ID, err.Error())
			return eventType, err
		}
	default:
		// Leave txn_status untouched so a later settled/expired event is not
		// blocked by the dedupe check above.
		log.Printf("[BTCPay] unhandled event type %q for remote invoice %s", ev.Type, ev.InvoiceID)
	}

	return eventType, p.events.MarkProcessed(stored.ID, "")
}
