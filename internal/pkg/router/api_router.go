package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PixOffline/app/controllers"
	"github.com/ManuelReschke/PixOffline/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	controllers.InitializeControllers()

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "PixOffline API",
		})
	})

	// Provider callbacks; authenticated by payload shape and the webhook
	// toggle, not by API key.
	api.Post("/webhook/openpix", controllers.HandleOpenPixWebhook)

	// Customer-facing payment routes.
	pix := api.Group("/pix")
	pix.Post("/dynamic", controllers.HandleDynamicCharge)
	pix.Get("/code/:id", controllers.HandleStaticCode)
	pix.Post("/copy", controllers.HandleCopyCode)
	pix.Post("/confirm", controllers.HandleConfirmPayment)
	pix.Post("/recalculate", controllers.HandleRecalculate)

	// Admin surface, key-protected.
	admin := api.Group("/admin/pix", middleware.AdminAPIKeyMiddleware())
	admin.Get("/transactions", controllers.HandleAdminListTransactions)
	admin.Get("/stats", controllers.HandleAdminStats)
	admin.Post("/transactions/:id/status", controllers.HandleAdminSetStatus)
	admin.Post("/transactions/:id/reactivate", controllers.HandleAdminReactivate)
	admin.Delete("/transactions/:id", controllers.HandleAdminDeleteTransaction)
	admin.Post("/bulk", controllers.HandleAdminBulk)
	admin.Post("/cleanup", controllers.HandleAdminCleanup)
	admin.Post("/repair-duplicates", controllers.HandleAdminRepairDuplicates)
	admin.Get("/settings", controllers.HandleAdminGetSettings)
	admin.Put("/settings", controllers.HandleAdminUpdateSettings)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
