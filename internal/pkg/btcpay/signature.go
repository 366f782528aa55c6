package btcpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const sigHeaderPrefix = "sha256="

// VerifyWebhookSignature checks the BTCPay-Sig header against an HMAC-SHA256
// of the raw request body. The header carries "sha256=<hex digest>".
// Verification failure is a boolean outcome, never an error, and the compare
// is constant time.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	if !strings.HasPrefix(strings.ToLower(sig), sigHeaderPrefix) {
		return false
	}
	decodedSig, err := hex.DecodeString(strings.ToLower(sig[len(sigHeaderPrefix):]))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// SignPayload produces the BTCPay-Sig header value for a payload. Used by
// tests and by tooling that replays stored deliveries.
func SignPayload(payload []byte, webhookSecret string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return sigHeaderPrefix + hex.EncodeToString(mac.Sum(nil))
}
