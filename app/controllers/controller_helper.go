package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PixOffline/internal/pkg/commerce"
	"github.com/ManuelReschke/PixOffline/internal/pkg/database"
	"github.com/ManuelReschke/PixOffline/internal/pkg/openpix"
	"github.com/ManuelReschke/PixOffline/internal/pkg/pixstore"
	"github.com/ManuelReschke/PixOffline/internal/pkg/transactions"
	"github.com/ManuelReschke/PixOffline/internal/pkg/webhook"
)

var (
	txService     *transactions.Service
	chargeService *openpix.Service
	webhookEngine *webhook.Engine
	orderService  commerce.Orders
)

// InitializeControllers wires the controllers against the live database
// and cache. Called once from the router during startup.
func InitializeControllers() {
	db := database.GetDB()
	store := pixstore.New(db)
	orders := commerce.New(db)
	svc := transactions.NewService(store, orders)

	SetServices(svc, openpix.NewService(openpix.NewClient(), openpix.NewRedisChargeCache(), svc), webhook.NewEngine(svc), orders)
}

// SetServices replaces the controller collaborators. Tests wire in-memory
// implementations through it.
func SetServices(svc *transactions.Service, charges *openpix.Service, engine *webhook.Engine, orders commerce.Orders) {
	txService = svc
	chargeService = charges
	webhookEngine = engine
	orderService = orders
}

// orderIDParam parses the :id route parameter.
func orderIDParam(c *fiber.Ctx) (uint, bool) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
