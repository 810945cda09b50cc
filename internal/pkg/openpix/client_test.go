package openpix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PixOffline/app/models"
)

func configureProvider(t *testing.T, url string) {
	t.Helper()
	models.SetPixSettings(&models.PixSettings{
		DynamicEnabled: true,
		OpenPixAPIURL:  url,
		OpenPixAppID:   "app-id-123",
	})
}

func TestCreateChargeSendsCentavos(t *testing.T) {
	var got ChargeRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"charge": map[string]any{"brCode": "00020101", "identifier": "id-1", "expiresIn": 1800},
		})
	}))
	defer srv.Close()
	configureProvider(t, srv.URL)

	charge, err := NewClient().CreateCharge(context.Background(), 42, decimal.RequireFromString("49.90"))
	require.NoError(t, err)
	assert.Equal(t, "42", got.CorrelationID)
	assert.Equal(t, int64(4990), got.Value)
	assert.Equal(t, "app-id-123", auth)
	assert.Equal(t, "00020101", charge.BrCode)
	assert.Equal(t, 1800, charge.ExpiresIn)
}

func TestCreateChargeAcceptsBareChargeObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"brCode": "00020101"})
	}))
	defer srv.Close()
	configureProvider(t, srv.URL)

	charge, err := NewClient().CreateCharge(context.Background(), 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "00020101", charge.BrCode)
	assert.Equal(t, DefaultExpiresIn, charge.ExpiresIn, "missing lifetime falls back to the default")
}

func TestCreateChargeNotConfigured(t *testing.T) {
	models.SetPixSettings(&models.PixSettings{DynamicEnabled: true})

	_, err := NewClient().CreateCharge(context.Background(), 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateChargeBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	configureProvider(t, srv.URL)

	_, err := NewClient().CreateCharge(context.Background(), 1, decimal.NewFromInt(1))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestCreateChargeInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()
	configureProvider(t, srv.URL)

	_, err := NewClient().CreateCharge(context.Background(), 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCreateChargeMissingBrCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"charge": map[string]any{"identifier": "id-1"}})
	}))
	defer srv.Close()
	configureProvider(t, srv.URL)

	_, err := NewClient().CreateCharge(context.Background(), 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrIncompleteCharge)
}

func TestCreateChargeConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	configureProvider(t, srv.URL)

	_, err := NewClient().CreateCharge(context.Background(), 1, decimal.NewFromInt(1))
	var connErr *ConnectionError
	assert.ErrorAs(t, err, &connErr)
}
