// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const collaborator = "mailer"

// OrderConfirmation is the data rendered into an order confirmation email
type OrderConfirmation struct {
	OrderID               string
	CustomerName          string
	CustomerEmail         string
	Address               string
	City                  string
	ZipCode               string
	Items                 []models.OrderItem
	Total                 decimal.Decimal
	IsPreorder            bool
	EstimatedDeliveryDays int
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers mail through an SMTP relay
type SMTPMailer struct {
	dialer  sender
	from    string
	shopURL string
	logger  *zap.Logger
}

// NewSMTPMailer creates a mailer bound to the given relay
func NewSMTPMailer(host string, port int, user, password, from, shopURL string) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(host, port, user, password),
		from:    from,
		shopURL: shopURL,
		logger:  util.GetLogger(),
	}
}

// SendRestockNotice tells a subscriber their variant is available again
func (m *SMTPMailer) SendRestockNotice(ctx context.Context, email, variantLabel string, quantity int) error {
	ctx, span := util.StartSpan(ctx, "Mailer.SendRestockNotice")
	defer span.End()

	body, err := render(restockTemplate, restockData{
		VariantLabel: variantLabel,
		Quantity:     quantity,
		ShopURL:      m.shopURL + "/shop",
	})
	if err != nil {
		return fmt.Errorf("failed to render restock notice: %w", err)
	}

	subject := fmt.Sprintf("Back in stock - %s", variantLabel)
	if err := m.send(ctx, email, subject, body); err != nil {
		util.RecordError(span, err)
		return err
	}

	m.logger.Info("Stock notification email sent", zap.String("email", email), zap.String("variant", variantLabel))
	return nil
}

// SendOrderConfirmation sends the order receipt to the customer
func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, oc OrderConfirmation) error {
	ctx, span := util.StartSpan(ctx, "Mailer.SendOrderConfirmation")
	defer span.End()

	body, err := render(orderTemplate, oc)
	if err != nil {
		return fmt.Errorf("failed to render order confirmation: %w", err)
	}

	subject := "Order confirmation - " + oc.OrderID
	if oc.IsPreorder {
		subject = "Preorder confirmed - " + oc.OrderID
	}
	if err := m.send(ctx, oc.CustomerEmail, subject, body); err != nil {
		util.RecordError(span, err)
		return err
	}

	m.logger.Info("Order confirmation email sent", zap.String("order_id", oc.OrderID))
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return &models.IntegrationFailure{Collaborator: collaborator, Err: err}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return &models.IntegrationFailure{Collaborator: collaborator, Err: err}
	}
	return nil
}

// LogMailer logs messages instead of sending them. Used when no relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{logger: util.GetLogger()}
}

func (l *LogMailer) SendRestockNotice(ctx context.Context, email, variantLabel string, quantity int) error {
	l.logger.Info("Restock notice (not sent, no mail relay configured)",
		zap.String("email", email),
		zap.String("variant", variantLabel),
		zap.Int("quantity", quantity))
	return nil
}

func (l *LogMailer) SendOrderConfirmation(ctx context.Context, oc OrderConfirmation) error {
	l.logger.Info("Order confirmation (not sent, no mail relay configured)",
		zap.String("order_id", oc.OrderID),
		zap.String("email", oc.CustomerEmail))
	return nil
}
