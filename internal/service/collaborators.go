package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/worker"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IDGenerator produces globally unique identities for orders, variants and subscriptions
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random v4 UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// TaskSubmitter hands work to a bounded background queue
type TaskSubmitter interface {
	Submit(name string, task worker.Task) error
}

// Locker provides a mutual exclusion lease keyed by name
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// RestockNotifier is the mail-sending collaborator used by the fan-out
type RestockNotifier interface {
	SendRestockNotice(ctx context.Context, email, variantLabel string, quantity int) error
}

// OrderMailer sends order confirmations
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, oc mailer.OrderConfirmation) error
}

// PaymentGateway fetches payment details by id
type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*models.GatewayPayment, error)
}

// PreferenceCreator registers checkout preferences with the gateway
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error)
}

// IdempotencyStore remembers the outcome of requests carrying an Idempotency-Key
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	ForgetIdempotencyKey(ctx context.Context, key string) error
}

// PaymentNotificationSink receives webhook deliveries after they were acknowledged
type PaymentNotificationSink interface {
	Accept(ctx context.Context, n models.PaymentNotification) error
}

// LocalLocker is an in-process Locker for single-instance deployments and tests
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, ok := l.held[key]; ok && time.Now().Before(expires) {
		return nil, false, nil
	}
	expires := time.Now().Add(ttl)
	l.held[key] = expires

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == expires {
			delete(l.held, key)
		}
		return nil
	}
	return release, true, nil
}

var validate = validator.New()

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return models.Required("email")
	}
	if err := validate.Var(email, "email"); err != nil {
		return &models.ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}
