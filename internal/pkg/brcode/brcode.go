// Package brcode builds PIX copy-and-paste payloads in the EMV BR Code
// format defined by the Banco Central do Brasil.
package brcode

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EMV field IDs used in a static PIX payload.
const (
	idPayloadFormat         = "00"
	idMerchantAccount       = "26"
	idMerchantCategory      = "52"
	idCurrency              = "53"
	idAmount                = "54"
	idCountry               = "58"
	idMerchantName          = "59"
	idMerchantCity          = "60"
	idAdditionalData        = "62"
	idCRC                   = "63"
	idAccountGUI            = "00"
	idAccountKey            = "01"
	idAdditionalTxID        = "05"
	pixGUI                  = "BR.GOV.BCB.PIX"
	currencyBRL             = "986"
	defaultAdditionalTxID   = "***"
	merchantNamePlaceholder = "N"
	merchantCityPlaceholder = "C"
)

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// Encode builds the copy-and-paste payload for a static charge on the
// given PIX key. Amount zero omits the amount field; identifier fills the
// additional-data transaction id, falling back to "***" when empty.
func Encode(pixKey string, amount decimal.Decimal, identifier string) string {
	var b strings.Builder

	b.WriteString(tlv(idPayloadFormat, "01"))

	account := tlv(idAccountGUI, pixGUI) + tlv(idAccountKey, pixKey)
	b.WriteString(tlv(idMerchantAccount, account))

	b.WriteString(tlv(idMerchantCategory, "0000"))
	b.WriteString(tlv(idCurrency, currencyBRL))
	if amount.IsPositive() {
		b.WriteString(tlv(idAmount, amount.StringFixed(2)))
	}
	b.WriteString(tlv(idCountry, "BR"))
	b.WriteString(tlv(idMerchantName, merchantNamePlaceholder))
	b.WriteString(tlv(idMerchantCity, merchantCityPlaceholder))

	txid := identifier
	if txid == "" {
		txid = defaultAdditionalTxID
	}
	if len(txid) > 25 {
		txid = txid[:25]
	}
	b.WriteString(tlv(idAdditionalData, tlv(idAdditionalTxID, txid)))

	// The CRC covers everything up to and including its own id and length.
	payload := b.String() + idCRC + "04"
	return payload + fmt.Sprintf("%04X", Checksum([]byte(payload)))
}
