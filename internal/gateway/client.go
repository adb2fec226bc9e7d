// Package gateway talks to the MercadoPago REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const collaborator = "payment-gateway"

type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// NewClient creates a gateway client with a traced transport
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type paymentResponse struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
}

// GetPayment fetches full payment details by id
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*models.GatewayPayment, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.GetPayment")
	defer span.End()

	var resp paymentResponse
	if err := c.do(ctx, "get_payment", http.MethodGet, "/v1/payments/"+paymentID, nil, &resp); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	return &models.GatewayPayment{
		ID:                resp.ID.String(),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
		TransactionAmount: resp.TransactionAmount,
		CurrencyID:        resp.CurrencyID,
	}, nil
}

// PreferenceItem is a line shown on the gateway checkout page
type PreferenceItem struct {
	Title       string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	CurrencyID  string
}

// PreferencePayer identifies the buyer on the checkout page
type PreferencePayer struct {
	Name    string
	Email   string
	Phone   string
	Street  string
	City    string
	ZipCode string
}

// PreferenceRequest describes a checkout preference
type PreferenceRequest struct {
	ExternalReference string
	Items             []PreferenceItem
	Payer             PreferencePayer
	SuccessURL        string
	FailureURL        string
	PendingURL        string
	NotificationURL   string
}

// Preference is the created checkout preference
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// CreatePreference registers a checkout preference with our order id as external reference
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.CreatePreference")
	defer span.End()

	items := make([]map[string]interface{}, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, map[string]interface{}{
			"title":       it.Title,
			"description": it.Description,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice.InexactFloat64(),
			"currency_id": it.CurrencyID,
		})
	}

	body := map[string]interface{}{
		"items": items,
		"payer": map[string]interface{}{
			"name":  req.Payer.Name,
			"email": req.Payer.Email,
			"phone": map[string]string{"number": req.Payer.Phone},
			"address": map[string]string{
				"street_name": req.Payer.Street,
				"city_name":   req.Payer.City,
				"zip_code":    req.Payer.ZipCode,
			},
		},
		"back_urls": map[string]string{
			"success": req.SuccessURL,
			"failure": req.FailureURL,
			"pending": req.PendingURL,
		},
		"auto_return":        "approved",
		"external_reference": req.ExternalReference,
		"notification_url":   req.NotificationURL,
	}

	var pref Preference
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", body, &pref); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return &pref, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &models.IntegrationFailure{Collaborator: collaborator, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &models.IntegrationFailure{Collaborator: collaborator, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &models.IntegrationFailure{
			Collaborator: collaborator,
			Err:          fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.IntegrationFailure{Collaborator: collaborator, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
