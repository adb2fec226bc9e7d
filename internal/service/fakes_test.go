package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-service/internal/gateway"
	"storefront-service/internal/mailer"
	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/worker"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

// inlineQueue runs tasks on Submit
type inlineQueue struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (q *inlineQueue) Submit(name string, task worker.Task) error {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return q.err
	}
	q.names = append(q.names, name)
	q.mu.Unlock()

	task(context.Background())
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
	panicOn string
}

func newFakeNotifier(failing ...string) *fakeNotifier {
	f := &fakeNotifier{failFor: map[string]bool{}}
	for _, e := range failing {
		f.failFor[e] = true
	}
	return f
}

func (f *fakeNotifier) SendRestockNotice(ctx context.Context, email, variantLabel string, quantity int) error {
	if email == f.panicOn {
		panic("mail relay exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[email] {
		return &models.IntegrationFailure{Collaborator: "mailer", Err: errors.New("smtp 550")}
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *fakeNotifier) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, variantID string) (*DispatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, variantID)
	if r.err != nil {
		return nil, r.err
	}
	return &DispatchResult{VariantID: variantID}, nil
}

func (r *recordingDispatcher) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type recordingPublisher struct {
	mu            sync.Mutex
	created       int
	statusChanges []models.OrderStatusChangedEvent
	restocked     []string
	sent          int
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return nil
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanges = append(p.statusChanges, *e)
	return nil
}

func (p *recordingPublisher) PublishVariantRestocked(ctx context.Context, e *models.VariantRestockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restocked = append(p.restocked, e.VariantID)
	return nil
}

func (p *recordingPublisher) PublishStockNotificationSent(ctx context.Context, e *models.StockNotificationSentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent++
	return nil
}

type fakeGateway struct {
	payments map[string]*models.GatewayPayment
	err      error
}

func (g *fakeGateway) GetPayment(ctx context.Context, id string) (*models.GatewayPayment, error) {
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, &models.IntegrationFailure{Collaborator: "payment-gateway", Err: errors.New("404")}
	}
	return p, nil
}

type fakePreferences struct {
	mu    sync.Mutex
	calls []gateway.PreferenceRequest
	err   error
}

func (f *fakePreferences) CreatePreference(ctx context.Context, req gateway.PreferenceRequest) (*gateway.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, req)
	id := fmt.Sprintf("pref-%d", len(f.calls))
	return &gateway.Preference{ID: id, InitPoint: "https://pay.example/" + id}, nil
}

type fakeOrderMailer struct {
	mu   sync.Mutex
	sent []mailer.OrderConfirmation
	err  error
}

func (f *fakeOrderMailer) SendOrderConfirmation(ctx context.Context, oc mailer.OrderConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, oc)
	return nil
}

type fakeIdempotency struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{values: map[string]string{}}
}

func (f *fakeIdempotency) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok {
		return v, false, nil
	}
	f.values[key] = redisclient.InFlight
	return "", true, nil
}

func (f *fakeIdempotency) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeIdempotency) ForgetIdempotencyKey(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

type heldLocker struct{}

func (heldLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	return nil, false, nil
}
