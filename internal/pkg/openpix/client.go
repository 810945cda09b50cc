package openpix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuelReschke/PixOffline/app/models"
	"github.com/shopspring/decimal"
)

// requestTimeout bounds one charge creation round-trip.
const requestTimeout = 15 * time.Second

// DefaultExpiresIn is the charge lifetime used when the provider omits
// one, in seconds.
const DefaultExpiresIn = 3600

// ChargeRequest is the charge the provider is asked to create. Value is
// in centavos.
type ChargeRequest struct {
	CorrelationID string `json:"correlationID"`
	Value         int64  `json:"value"`
	ExpiresIn     int    `json:"expiresIn,omitempty"`
}

// ChargeResponse is the provider's created charge.
type ChargeResponse struct {
	BrCode      string `json:"brCode"`
	QRCodeImage string `json:"qrCodeImage"`
	Identifier  string `json:"identifier"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Client issues charges against the OpenPix HTTP API.
type Client struct {
	httpClient *http.Client
}

// NewClient creates an API client with the default timeout.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: requestTimeout}}
}

// CreateCharge asks the provider for a new charge on the order. The API
// URL and App ID come from the live settings; amount is converted to
// centavos.
func (c *Client) CreateCharge(ctx context.Context, orderID uint, amount decimal.Decimal) (*ChargeResponse, error) {
	settings := models.GetPixSettings()
	if settings.OpenPixAPIURL == "" || settings.OpenPixAppID == "" {
		return nil, ErrNotConfigured
	}

	reqBody := ChargeRequest{
		CorrelationID: strconv.FormatUint(uint64(orderID), 10),
		Value:         amount.Mul(decimal.NewFromInt(100)).IntPart(),
		ExpiresIn:     DefaultExpiresIn,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.OpenPixAPIURL+"/api/v1/charge", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", settings.OpenPixAppID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// The provider wraps the charge in an envelope; accept a bare charge
	// object as well.
	var envelope struct {
		Charge *ChargeResponse `json:"charge"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	charge := envelope.Charge
	if charge == nil {
		charge = &ChargeResponse{}
		if err := json.Unmarshal(body, charge); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	if charge.BrCode == "" {
		return nil, ErrIncompleteCharge
	}
	if charge.ExpiresIn <= 0 {
		charge.ExpiresIn = DefaultExpiresIn
	}
	return charge, nil
}
