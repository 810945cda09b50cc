package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/ManuelReschke/PixOffline/internal/pkg/database"
	"github.com/ManuelReschke/PixOffline/internal/pkg/transactions"
)

// HandleAdminListTransactions returns every transaction, newest first.
func HandleAdminListTransactions(c *fiber.Ctx) error {
	txs, err := txService.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"transactions": txs, "count": len(txs)})
}

// HandleAdminStats aggregates transactions by status, type and provider
// status.
func HandleAdminStats(c *fiber.Ctx) error {
	stats, err := txService.Stats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"stats": stats})
}

// HandleAdminSetStatus moves one transaction to an explicit status.
func HandleAdminSetStatus(c *fiber.Ctx) error {
	orderID, ok := orderIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}

	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	if err := txService.UpdateStatus(orderID, req.Status, req.Reason); err != nil {
		if errors.Is(err, transactions.ErrInvalidStatus) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_status"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAdminReactivate reverses a settled transaction back to pendente.
func HandleAdminReactivate(c *fiber.Ctx) error {
	orderID, ok := orderIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}
	if err := txService.Reactivate(orderID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reactivate_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAdminDeleteTransaction removes every PIX attribute for an order.
func HandleAdminDeleteTransaction(c *fiber.Ctx) error {
	orderID, ok := orderIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}
	if err := txService.Delete(orderID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "delete_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleAdminBulk applies one allow-listed action to a set of orders and
// reports how many were processed.
func HandleAdminBulk(c *fiber.Ctx) error {
	var req struct {
		Action   string `json:"action"`
		OrderIDs []uint `json:"order_ids"`
		Reason   string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	processed, err := txService.Bulk(req.Action, req.OrderIDs, req.Reason)
	if err != nil {
		if errors.Is(err, transactions.ErrInvalidAction) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_action"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "bulk_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "processed": processed})
}

// HandleAdminCleanup deletes transactions older than the requested number
// of days (default 90).
func HandleAdminCleanup(c *fiber.Ctx) error {
	var req struct {
		Days int `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if req.Days <= 0 {
		req.Days = 90
	}

	cutoff := time.Now().AddDate(0, 0, -req.Days)
	cleaned, err := txService.CleanupOld(cutoff)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cleanup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "cleaned": cleaned})
}

// HandleAdminRepairDuplicates collapses orders carrying more than one
// transaction id into a single fresh transaction.
func HandleAdminRepairDuplicates(c *fiber.Ctx) error {
	processed, cleaned, err := txService.RepairDuplicates()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "repair_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "processed": processed, "cleaned": cleaned})
}

// HandleAdminGetSettings returns the live PIX settings.
func HandleAdminGetSettings(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(models.GetPixSettings())
}

// HandleAdminUpdateSettings validates and persists new PIX settings, then
// swaps them in-memory.
func HandleAdminUpdateSettings(c *fiber.Ctx) error {
	var settings models.PixSettings
	if err := c.BodyParser(&settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := settings.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_settings", "message": err.Error()})
	}

	if db := database.GetDB(); db != nil {
		if err := models.SaveSettings(db, &settings); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "save_failed"})
		}
	}
	models.SetPixSettings(&settings)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
