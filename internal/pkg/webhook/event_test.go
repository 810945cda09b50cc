package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsBadJSON(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.Error(t, err)
}

func TestIsTest(t *testing.T) {
	p, err := Parse([]byte(`{"evento":"teste_webhook"}`))
	require.NoError(t, err)
	assert.True(t, p.IsTest())

	p, err = Parse([]byte(`{"event":"teste_webhook"}`))
	require.NoError(t, err)
	assert.True(t, p.IsTest())

	p, err = Parse([]byte(`{"evento":"outro"}`))
	require.NoError(t, err)
	assert.False(t, p.IsTest())
}

func TestOrderID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    uint
		ok      bool
	}{
		{"numeric", `{"charge":{"correlationID":"42"}}`, 42, true},
		{"padded", `{"charge":{"correlationID":" 42 "}}`, 42, true},
		{"non numeric", `{"charge":{"correlationID":"abc"}}`, 0, false},
		{"zero", `{"charge":{"correlationID":"0"}}`, 0, false},
		{"empty", `{"charge":{"correlationID":""}}`, 0, false},
		{"no charge", `{}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.payload))
			require.NoError(t, err)
			id, ok := p.OrderID()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"charge active", `{"charge":{"status":"ACTIVE"}}`, EventChargeCreated},
		{"charge completed", `{"charge":{"status":"COMPLETED"}}`, EventChargeCompleted},
		{"charge expired", `{"charge":{"status":"EXPIRED"}}`, EventChargeExpired},
		{"refund", `{"charge":{"correlationID":"1"},"pix":{"value":-500}}`, EventRefundReceived},
		{"failed movement", `{"charge":{"correlationID":"1"},"pix":{"value":500,"failed":true}}`, EventMovementFailed},
		{"movement", `{"charge":{"correlationID":"1"},"pix":{"value":500}}`, EventTransactionReceived},
		{"unknown status no pix", `{"charge":{"status":"WEIRD"}}`, ""},
		{"no charge", `{"pix":{"value":500}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Classify())
		})
	}
}
