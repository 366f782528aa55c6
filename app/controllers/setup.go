package controllers

import (
	"github.com/develab/btcgate/app/repository"
	"github.com/develab/btcgate/internal/pkg/billing"
	"github.com/develab/btcgate/internal/pkg/btcpay"
	"github.com/develab/btcgate/internal/pkg/cache"
	"github.com/develab/btcgate/internal/pkg/database"
	"github.com/develab/btcgate/internal/pkg/gateway"
)

var (
	cfg      *gateway.Config
	repos    *repository.Repositories
	checkout *gateway.CheckoutService
	webhook  *gateway.WebhookProcessor
)

// Setup wires the gateway services once at startup. A missing configuration
// field is fatal here, before any request is served.
func Setup() error {
	c, err := gateway.NewConfigFromEnv()
	if err != nil {
		return err
	}
	cfg = c

	db := database.GetDB()
	repos = repository.NewFactory(db).GetRepositories()
	remote := btcpay.NewClient(cfg.HostURL, cfg.APIKey)
	checkout = gateway.NewCheckoutService(cfg, remote, repos.Transaction, cache.NewKV())
	webhook = gateway.NewWebhookProcessor(cfg, repos.Transaction, repos.WebhookEvent, billing.NewService(db))
	return nil
}
