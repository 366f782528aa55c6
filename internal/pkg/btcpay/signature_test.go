package btcpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"InvoiceSettled","invoiceId":"abc"}`)
	secret := "top-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyWebhookSignature(payload, SignPayload(payload, secret), secret) {
		t.Fatalf("expected SignPayload output to validate")
	}
	if VerifyWebhookSignature(payload, validSig, "other-secret") {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifyWebhookSignature([]byte(`{"type":"tampered"}`), validSig, secret) {
		t.Fatalf("expected tampered payload to fail")
	}
}

func TestVerifyWebhookSignature_HeaderShape(t *testing.T) {
	payload := []byte(`{}`)
	secret := "s"
	raw := SignPayload(payload, secret)

	if VerifyWebhookSignature(payload, "", secret) {
		t.Fatalf("expected empty header to fail")
	}
	if VerifyWebhookSignature(payload, raw, "") {
		t.Fatalf("expected empty secret to fail")
	}
	if VerifyWebhookSignature(payload, raw[len("sha256="):], secret) {
		t.Fatalf("expected bare digest without prefix to fail")
	}
	if VerifyWebhookSignature(payload, "sha256=not-hex", secret) {
		t.Fatalf("expected non hex digest to fail")
	}
	if !VerifyWebhookSignature(payload, "  "+raw+"  ", secret) {
		t.Fatalf("expected surrounding whitespace to be tolerated")
	}
}

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"deliveryId": "d_1",
		"webhookId": "wh_1",
		"originalDeliveryId": "d_0",
		"isRedelivery": true,
		"type": "InvoicePaymentSettled",
		"timestamp": 1700000000,
		"storeId": "store_1",
		"invoiceId": "inv_1"
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.DeliveryID != "d_1" || ev.InvoiceID != "inv_1" {
		t.Fatalf("unexpected ids: delivery=%q invoice=%q", ev.DeliveryID, ev.InvoiceID)
	}
	if ev.Type != EventInvoicePaymentSettled {
		t.Fatalf("unexpected type %q", ev.Type)
	}
	if !ev.IsRedelivery {
		t.Fatalf("expected redelivery flag")
	}
}

func TestParseEvent_MissingFields(t *testing.T) {
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if _, err := ParseEvent([]byte(`{"invoiceId":"inv_1"}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if _, err := ParseEvent([]byte(`{"type":"InvoiceSettled"}`)); err == nil {
		t.Fatalf("expected error for missing invoice id")
	}
}
