package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/ManuelReschke/PixOffline/internal/pkg/commerce"
	"github.com/ManuelReschke/PixOffline/internal/pkg/transactions"
	"github.com/ManuelReschke/PixOffline/internal/pkg/webhook"
)

// HandleOpenPixWebhook ingests provider payment notifications. The gate
// order is fixed: a disabled endpoint rejects before any parsing, the test
// ping is acknowledged before the charge is required, and duplicates are
// acknowledged without re-dispatching.
func HandleOpenPixWebhook(c *fiber.Ctx) error {
	if !models.GetPixSettings().IsWebhookEnabled() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "webhook_disabled"})
	}

	body := append([]byte(nil), c.BodyRaw()...)
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "empty_body"})
	}

	payload, err := webhook.Parse(body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if payload.IsTest() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "test": true})
	}

	if payload.Charge == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_charge"})
	}

	orderID, ok := payload.OrderID()
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_correlation_id"})
	}

	order, err := orderService.Get(orderID)
	if err != nil {
		if errors.Is(err, commerce.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		log.Printf("webhook: order %d lookup failed: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "order_lookup_failed"})
	}
	if !order.UsesBankTransfer() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_eligible"})
	}

	// A notification can outrun the checkout hook; make sure the
	// transaction record exists before dispatching against it.
	exists, err := txService.Exists(orderID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_lookup_failed"})
	}
	if !exists {
		if _, _, err := txService.Create(orderID, transactions.StatusGenerated); err != nil {
			log.Printf("webhook: create transaction for order %d failed: %v", orderID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_create_failed"})
		}
	}

	result, err := webhookEngine.Process(orderID, payload, body)
	if err != nil {
		if errors.Is(err, webhook.ErrUnclassified) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_event"})
		}
		log.Printf("webhook: dispatch for order %d failed: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "dispatch_failed"})
	}
	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "event": result.Event})
}
