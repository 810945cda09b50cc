package transactions

import "github.com/ManuelReschke/PixOffline/app/models"

// Internal lifecycle statuses. The vocabulary is the merchant-facing one
// and is kept in Portuguese because admins, order notes and the provider
// integration all speak it.
const (
	StatusCheckoutStarted = "checkout_iniciado"
	StatusGenerated       = "pix_gerado"
	StatusCopied          = "pix_copiado"
	StatusPending         = "pendente"
	StatusFinalized       = "finalizado"
	StatusReversedAdmin   = "estornado_admin"
	StatusRefusedAdmin    = "recusado_admin"
	StatusRefunded        = "reembolso"
	StatusReversedOpenPix = "estorno_openpix"
	StatusRefusedOpenPix  = "recusado_openpix"
	StatusExpiredOpenPix  = "expirado_openpix"
)

// Provider (OpenPix) statuses, set only by webhook events. A transaction
// has no provider status until the first webhook arrives.
const (
	ProviderStatusCreated   = "created"
	ProviderStatusCompleted = "completed"
	ProviderStatusRefunded  = "refunded"
	ProviderStatusFailed    = "failed"
	ProviderStatusExpired   = "expired"
)

// PIX types, fixed at transaction creation from the configuration active
// at that moment.
const (
	PixTypeStatic  = "static"
	PixTypeDynamic = "dynamic"
)

var validStatuses = map[string]struct{}{
	StatusCheckoutStarted: {},
	StatusGenerated:       {},
	StatusCopied:          {},
	StatusPending:         {},
	StatusFinalized:       {},
	StatusReversedAdmin:   {},
	StatusRefusedAdmin:    {},
	StatusRefunded:        {},
	StatusReversedOpenPix: {},
	StatusRefusedOpenPix:  {},
	StatusExpiredOpenPix:  {},
}

// IsValidStatus reports whether s is one of the defined internal statuses.
func IsValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

var terminalStatuses = map[string]struct{}{
	StatusFinalized:       {},
	StatusReversedAdmin:   {},
	StatusRefusedAdmin:    {},
	StatusRefunded:        {},
	StatusReversedOpenPix: {},
	StatusRefusedOpenPix:  {},
	StatusExpiredOpenPix:  {},
}

// IsTerminal reports whether s is a settled status. Terminal statuses can
// still be reversed to pendente by an explicit admin reactivation; the
// machine is not acyclic.
func IsTerminal(s string) bool {
	_, ok := terminalStatuses[s]
	return ok
}

// PixTypeLabel renders the transaction's PIX type for order notes.
func PixTypeLabel(pixType string) string {
	if pixType == PixTypeDynamic {
		return "PIX Dinâmico (OpenPix)"
	}
	return "PIX Estático"
}

// orderEffect describes the order-side consequence of an internal status.
type orderEffect struct {
	orderStatus    string // empty: note only
	note           string
	deleteCustomer bool
}

// effectFor maps an internal status to its order side effect. Statuses
// without an entry carry no order-side consequence.
func effectFor(status, pixTypeLabel string) (orderEffect, bool) {
	switch status {
	case StatusCopied:
		return orderEffect{note: "Cliente copiou código " + pixTypeLabel + "."}, true
	case StatusFinalized:
		return orderEffect{orderStatus: models.OrderStatusCompleted, note: "Pagamento " + pixTypeLabel + " confirmado."}, true
	case StatusReversedAdmin:
		return orderEffect{orderStatus: models.OrderStatusCancelled, note: "Pagamento " + pixTypeLabel + " estornado pelo admin."}, true
	case StatusRefusedAdmin:
		return orderEffect{orderStatus: models.OrderStatusCancelled, note: "Pagamento " + pixTypeLabel + " recusado pelo admin.", deleteCustomer: true}, true
	case StatusReversedOpenPix:
		return orderEffect{orderStatus: models.OrderStatusRefunded, note: "Pagamento reembolsado automaticamente via OpenPix."}, true
	case StatusRefusedOpenPix:
		return orderEffect{orderStatus: models.OrderStatusFailed, note: "Pagamento recusado automaticamente via OpenPix (falha)."}, true
	case StatusExpiredOpenPix:
		return orderEffect{orderStatus: models.OrderStatusFailed, note: "Pagamento expirado automaticamente via OpenPix (timeout)."}, true
	case StatusRefunded:
		return orderEffect{orderStatus: models.OrderStatusRefunded, note: "Pagamento " + pixTypeLabel + " reembolsado."}, true
	case StatusPending:
		return orderEffect{orderStatus: models.OrderStatusOnHold, note: "Pagamento " + pixTypeLabel + " reativado."}, true
	}
	return orderEffect{}, false
}

// StatusFromOrder infers the internal status a repaired transaction should
// start in, from the order's current platform status.
func StatusFromOrder(orderStatus string) string {
	switch orderStatus {
	case models.OrderStatusCompleted:
		return StatusFinalized
	case models.OrderStatusCancelled, models.OrderStatusFailed:
		return StatusRefusedAdmin
	case models.OrderStatusRefunded:
		return StatusReversedAdmin
	default:
		return StatusCheckoutStarted
	}
}
