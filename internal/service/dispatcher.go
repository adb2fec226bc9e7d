package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DispatchResult summarizes one fan-out batch
type DispatchResult struct {
	VariantID string `json:"variant_id"`
	Pending   int    `json:"pending"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   bool   `json:"skipped"`
}

// RestockDispatcher notifies every pending subscriber of a variant once
type RestockDispatcher struct {
	notifications NotificationRepository
	notifier      RestockNotifier
	locker        Locker
	events        EventPublisher
	maxConcurrent int
	lockTTL       time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewRestockDispatcher creates a dispatcher sending at most maxConcurrent mails at once
func NewRestockDispatcher(
	notifications NotificationRepository,
	notifier RestockNotifier,
	locker Locker,
	events EventPublisher,
	maxConcurrent int,
	lockTTL time.Duration,
) *RestockDispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RestockDispatcher{
		notifications: notifications,
		notifier:      notifier,
		locker:        locker,
		events:        events,
		maxConcurrent: maxConcurrent,
		lockTTL:       lockTTL,
		now:           time.Now,
		logger:        util.GetLogger(),
	}
}

// Dispatch sends a restock notice to each pending subscriber of variantID and marks
// the ones that succeeded. Failures are isolated per subscriber and left pending.
func (d *RestockDispatcher) Dispatch(ctx context.Context, variantID string) (res *DispatchResult, err error) {
	ctx, span := util.StartSpan(ctx, "RestockDispatcher.Dispatch", attribute.String("variant_id", variantID))
	defer span.End()

	start := time.Now()
	res = &DispatchResult{VariantID: variantID}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Restock dispatch panicked", zap.String("variant_id", variantID), zap.Any("panic", r))
			err = fmt.Errorf("restock dispatch panicked: %v", r)
		}
		util.RestockDispatchLatency.Observe(time.Since(start).Seconds())
	}()

	release, acquired, err := d.locker.AcquireLock(ctx, "restock-dispatch:"+variantID, d.lockTTL)
	if err != nil {
		util.RecordError(span, err)
		return res, fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}
	if !acquired {
		d.logger.Info("Restock dispatch already running", zap.String("variant_id", variantID))
		res.Skipped = true
		return res, nil
	}
	defer func() {
		if rerr := release(context.Background()); rerr != nil {
			d.logger.Warn("Failed to release dispatch lock", zap.String("variant_id", variantID), zap.Error(rerr))
		}
	}()

	pending, err := d.notifications.ListPending(ctx, variantID)
	if err != nil {
		util.RecordError(span, err)
		return res, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	res.Pending = len(pending)
	if len(pending) == 0 {
		return res, nil
	}

	var sent, failed int64
	var g errgroup.Group
	g.SetLimit(d.maxConcurrent)
	for _, sub := range pending {
		sub := sub
		g.Go(func() error {
			if d.notifyOne(ctx, sub) {
				atomic.AddInt64(&sent, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Sent = int(sent)
	res.Failed = int(failed)
	span.SetAttributes(attribute.Int("sent", res.Sent), attribute.Int("failed", res.Failed))
	return res, nil
}

// notifyOne reports whether the subscriber was mailed and marked
func (d *RestockDispatcher) notifyOne(ctx context.Context, sub models.StockNotification) (ok bool) {
	log := d.logger.With(zap.String("subscription_id", sub.ID), zap.String("variant_id", sub.VariantID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Restock notice panicked", zap.Any("panic", r))
			util.StockNotificationsFailedTotal.WithLabelValues("panic").Inc()
			ok = false
		}
	}()

	if err := d.notifier.SendRestockNotice(ctx, sub.Email, sub.VariantLabel, sub.Quantity); err != nil {
		log.Warn("Restock notice failed, subscription stays pending", zap.Error(err))
		util.StockNotificationsFailedTotal.WithLabelValues("send").Inc()
		return false
	}

	marked, err := d.notifications.MarkNotified(ctx, sub.ID, d.now())
	if err != nil {
		log.Error("Restock notice sent but not marked", zap.Error(err))
		util.StockNotificationsFailedTotal.WithLabelValues("mark").Inc()
		return false
	}
	if !marked {
		log.Info("Subscription was already marked notified")
		return true
	}

	util.StockNotificationsSentTotal.Inc()
	event := &models.StockNotificationSentEvent{
		BaseEvent:      newBaseEvent(models.EventTypeStockNotificationSent),
		SubscriptionID: sub.ID,
		VariantID:      sub.VariantID,
		Email:          sub.Email,
	}
	if err := d.events.PublishStockNotificationSent(ctx, event); err != nil {
		log.Error("Failed to publish StockNotificationSent event", zap.Error(err))
	}
	return true
}
