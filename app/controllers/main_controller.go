package controllers

import (
	"github.com/develab/btcgate/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2"
)

// HandleHealth is a readiness probe for the reverse proxy.
func HandleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// HandleStats exposes the Redis backed gateway counters.
func HandleStats(c *fiber.Ctx) error {
	events, err := counter.WebhookEventCounts()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	sessions, err := counter.CheckoutSessionCount()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"checkout_sessions": sessions,
		"webhook_events":    events,
	})
}
