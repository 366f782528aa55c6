package controllers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/develab/btcgate/internal/pkg/gateway"
	"github.com/develab/btcgate/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2"
)

// HandleBTCPayWebhook ingests BTCPay webhook deliveries. Every absorbed
// branch answers with the same generic ack body so the sender stops
// retrying; only a persistence failure surfaces as 500, which makes BTCPay
// redeliver the event.
func HandleBTCPayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("BTCPay-Sig"))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	eventType, err := webhook.Process(ctx, rawBody, signature)
	_ = counter.AddWebhookEvent(eventType)
	if err != nil {
		log.Printf("[BTCPay] webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(gateway.GenericAck)
}
