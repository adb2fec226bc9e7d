package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) publicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": h.opts.PublicKey})
}

func (h *Handler) createPreference(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.Checkout.CreatePreference(c.Request.Context(), c.GetHeader("Idempotency-Key"), req)
	if err != nil {
		h.respondError(c, "Error creating payment preference", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// flexibleID accepts gateway ids sent either as JSON numbers or strings
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type webhookBody struct {
	Type   string     `json:"type"`
	Topic  string     `json:"topic"`
	Action string     `json:"action"`
	ID     flexibleID `json:"id"`
	Data   struct {
		ID flexibleID `json:"id"`
	} `json:"data"`
}

// parseNotification reads the body first and falls back to the query string
func parseNotification(c *gin.Context) (models.PaymentNotification, error) {
	n := models.PaymentNotification{ReceivedAt: time.Now()}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		return n, err
	}

	var body webhookBody
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return n, err
		}
	}

	n.Type = firstNonEmpty(body.Type, body.Topic, c.Query("type"), c.Query("topic"))
	n.Action = body.Action
	n.ID = string(body.ID)
	n.DataID = firstNonEmpty(string(body.Data.ID), c.Query("data.id"))
	if n.DataID == "" && n.Type == "payment" {
		n.DataID = firstNonEmpty(n.ID, c.Query("id"))
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// webhook acknowledges first; processing happens on the background queue
func (h *Handler) webhook(c *gin.Context) {
	n, err := parseNotification(c)
	c.String(http.StatusOK, "OK")

	if err != nil {
		h.logger.Warn("Unreadable webhook payload acknowledged", zap.Error(err))
		return
	}
	h.logger.Info("Webhook received",
		zap.String("type", n.Type),
		zap.String("action", n.Action),
		zap.String("data_id", n.DataID))

	if err := h.svc.Webhooks.Enqueue(c.Request.Context(), n); err != nil {
		h.logger.Error("Webhook not queued", zap.String("data_id", n.DataID), zap.Error(err))
	}
}
