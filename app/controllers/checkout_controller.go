package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/develab/btcgate/app/models"
	"github.com/develab/btcgate/internal/pkg/billing"
	"github.com/develab/btcgate/internal/pkg/metrics/counter"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HandleCheckout sends the payer to the hosted checkout page for an invoice.
// The redirect is rendered as a small HTML page with a JS location hop so the
// billing frontend can embed the response directly.
func HandleCheckout(c *fiber.Ctx) error {
	hash := strings.TrimSpace(c.Params("hash"))
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Invoice reference is missing")
	}

	inv, err := repos.Invoice.GetByHash(hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Invoice not found")
		}
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to load invoice")
	}
	if inv.Status == models.InvoiceStatusPaid {
		return c.Redirect(cfg.RedirectURL(inv.Hash), fiber.StatusSeeOther)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	link, err := checkout.BuildSession(ctx, inv)
	if err != nil {
		log.Printf("[BTCPay] checkout session for invoice %s failed: %v", billing.InvoiceRef(inv), err)
		return c.Status(fiber.StatusBadGateway).Render("error", fiber.Map{
			"Title":   billing.InvoiceTitle(inv),
			"Message": err.Error(),
		})
	}

	_ = counter.AddCheckoutSession()
	return c.Render("redirect", fiber.Map{
		"Title":        billing.InvoiceTitle(inv),
		"CheckoutLink": link,
	})
}
