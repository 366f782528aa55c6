package router

import (
	"github.com/develab/btcgate/app/controllers"
	"github.com/develab/btcgate/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/health", controllers.HandleHealth)
	api.Get("/stats", middleware.APIKeyAuthMiddleware(), controllers.HandleStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
