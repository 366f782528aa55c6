package btcpay

import (
	"encoding/json"
	"errors"
	"strings"
)

// Remote invoice statuses as reported by the Greenfield API.
const (
	InvoiceStatusNew        = "New"
	InvoiceStatusProcessing = "Processing"
	InvoiceStatusSettled    = "Settled"
	InvoiceStatusExpired    = "Expired"
	InvoiceStatusInvalid    = "Invalid"
)

// Webhook event types delivered by BTCPay Server.
const (
	EventInvoiceCreated         = "InvoiceCreated"
	EventInvoiceReceivedPayment = "InvoiceReceivedPayment"
	EventInvoiceProcessing      = "InvoiceProcessing"
	EventInvoicePaymentSettled  = "InvoicePaymentSettled"
	EventInvoiceSettled         = "InvoiceSettled"
	EventInvoiceExpired         = "InvoiceExpired"
	EventInvoiceInvalid         = "InvoiceInvalid"
)

// Checkout speed policies. The values are the Greenfield wire names.
const (
	SpeedHigh      = "HighSpeed"
	SpeedMedium    = "MediumSpeed"
	SpeedLow       = "LowSpeed"
	SpeedLowMedium = "LowMediumSpeed"
)

// CheckoutOptions configures the hosted checkout page for a new invoice.
// Defaults not set here are picked from the store configuration.
type CheckoutOptions struct {
	SpeedPolicy    string   `json:"speedPolicy,omitempty"`
	PaymentMethods []string `json:"paymentMethods,omitempty"`
	RedirectURL    string   `json:"redirectURL,omitempty"`
}

// InvoiceRequest is the body of a Greenfield create-invoice call. Amount is
// a fixed point decimal string.
type InvoiceRequest struct {
	Amount   string          `json:"amount"`
	Currency string          `json:"currency"`
	Metadata map[string]any  `json:"metadata,omitempty"`
	Checkout CheckoutOptions `json:"checkout"`
}

// Invoice is the subset of the Greenfield invoice resource the gateway uses.
type Invoice struct {
	ID           string `json:"id"`
	StoreID      string `json:"storeId"`
	Status       string `json:"status"`
	Currency     string `json:"currency"`
	Amount       string `json:"amount"`
	CheckoutLink string `json:"checkoutLink"`
	CreatedTime  int64  `json:"createdTime"`
	OrderID      string `json:"orderId,omitempty"`
}

// Event is a parsed webhook delivery.
type Event struct {
	DeliveryID         string `json:"deliveryId"`
	WebhookID          string `json:"webhookId"`
	OriginalDeliveryID string `json:"originalDeliveryId"`
	IsRedelivery       bool   `json:"isRedelivery"`
	Type               string `json:"type"`
	Timestamp          int64  `json:"timestamp"`
	StoreID            string `json:"storeId"`
	InvoiceID          string `json:"invoiceId"`
}

// ParseEvent decodes a webhook payload and checks the fields every handler
// needs are present.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	ev.Type = strings.TrimSpace(ev.Type)
	ev.InvoiceID = strings.TrimSpace(ev.InvoiceID)
	if ev.Type == "" {
		return nil, errors.New("btcpay webhook payload missing event type")
	}
	if ev.InvoiceID == "" {
		return nil, errors.New("btcpay webhook payload missing invoice id")
	}
	return &ev, nil
}
