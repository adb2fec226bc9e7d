package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/987", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id": 987, "status": "approved", "external_reference": "order-1", "transaction_amount": 100.5, "currency_id": "ARS"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", time.Second)
	p, err := c.GetPayment(context.Background(), "987")
	require.NoError(t, err)
	assert.Equal(t, "987", p.ID)
	assert.Equal(t, "approved", p.Status)
	assert.Equal(t, "order-1", p.ExternalReference)
	assert.Equal(t, "100.5", p.TransactionAmount.String())
}

func TestGetPaymentErrorIsIntegrationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", time.Second)
	_, err := c.GetPayment(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, models.IsIntegration(err))
}

func TestCreatePreferenceSendsExternalReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order-42", body["external_reference"])
		assert.Equal(t, "https://api.example.com/api/payments/webhook", body["notification_url"])
		w.Write([]byte(`{"id": "pref-1", "init_point": "https://pay.example.com/pref-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "token", time.Second)
	pref, err := c.CreatePreference(context.Background(), PreferenceRequest{
		ExternalReference: "order-42",
		NotificationURL:   "https://api.example.com/api/payments/webhook",
	})
	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://pay.example.com/pref-1", pref.InitPoint)
}
