package router

import (
	"log"

	"github.com/develab/btcgate/app/controllers"
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Wire the gateway services; a broken configuration must stop the
	// process before routes are served.
	if err := controllers.Setup(); err != nil {
		log.Fatalf("gateway setup failed: %v", err)
	}

	// Payer facing checkout entry
	app.Get("/pay/:hash", controllers.HandleCheckout)

	// Asynchronous BTCPay notifications
	app.Post("/ipn/btcpay", controllers.HandleBTCPayWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
