package controllers

import (
	"context"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/ManuelReschke/PixOffline/internal/pkg/brcode"
	"github.com/ManuelReschke/PixOffline/internal/pkg/commerce"
	"github.com/ManuelReschke/PixOffline/internal/pkg/openpix"
	"github.com/ManuelReschke/PixOffline/internal/pkg/transactions"
)

type orderRequest struct {
	OrderID uint `json:"order_id"`
}

func parseOrderRequest(c *fiber.Ctx) (uint, error) {
	var req orderRequest
	if err := c.BodyParser(&req); err != nil {
		return 0, err
	}
	if req.OrderID == 0 {
		return 0, errors.New("order_id required")
	}
	return req.OrderID, nil
}

// HandleDynamicCharge creates or re-presents the dynamic charge for an
// order. Failures reaching the provider surface the configured customer
// error message rather than internals.
func HandleDynamicCharge(c *fiber.Ctx) error {
	settings := models.GetPixSettings()
	if !settings.IsDynamicEnabled() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dynamic_disabled"})
	}

	orderID, err := parseOrderRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	result, err := chargeService.GetOrCreate(context.Background(), orderID)
	if err != nil {
		if errors.Is(err, commerce.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		log.Printf("dynamic charge for order %d failed: %v", orderID, err)
		status := fiber.StatusBadGateway
		if errors.Is(err, openpix.ErrNotConfigured) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{"error": "charge_failed", "message": settings.ErrorMessage})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"br_code":       result.Charge.BrCode,
		"qr_code_image": result.Charge.QRCodeImage,
		"identifier":    result.Charge.Identifier,
		"expires_in":    result.Charge.ExpiresIn,
		"cached":        result.Cached,
	})
}

// HandleStaticCode renders the static copy-and-paste payload for an
// order from the configured PIX key.
func HandleStaticCode(c *fiber.Ctx) error {
	settings := models.GetPixSettings()
	if !settings.CopyPasteEnabled || settings.PixKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "static_disabled"})
	}

	orderID, ok := orderIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_order_id"})
	}

	tx, err := txService.Get(orderID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "transaction_lookup_failed"})
	}
	if tx == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transaction_not_found"})
	}

	identifier := tx.Identifier
	if identifier == "" {
		identifier = "ID" + strconv.FormatUint(uint64(orderID), 10)
		if err := txService.SetIdentifier(orderID, identifier); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "identifier_failed"})
		}
	}

	code := brcode.Encode(settings.PixKey, tx.TotalAmount, identifier)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"br_code": code, "total": tx.TotalAmount})
}

// HandleCopyCode records that the customer copied the payment code. An
// order note is left; the payment state does not advance.
func HandleCopyCode(c *fiber.Ctx) error {
	orderID, err := parseOrderRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := txService.UpdateStatus(orderID, transactions.StatusCopied, ""); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleConfirmPayment marks the order as awaiting verification after the
// customer claims to have paid. The order moves to on-hold.
func HandleConfirmPayment(c *fiber.Ctx) error {
	orderID, err := parseOrderRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := txService.UpdateStatus(orderID, transactions.StatusPending, ""); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "update_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleRecalculate refreshes the child orders and total for an order and
// returns the new values.
func HandleRecalculate(c *fiber.Ctx) error {
	orderID, err := parseOrderRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	total, children, err := txService.Recalculate(orderID)
	if err != nil {
		if errors.Is(err, commerce.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order_not_found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "recalculate_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "total": total, "child_orders": children})
}
