package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	domsvc "SignalForge/internal/domain/service"
	pkgcache "SignalForge/pkg/cache"
	applogger "SignalForge/pkg/logger"
)

const (
	defaultMinStrength = 70.0
	defaultLookback    = 24 * time.Hour
	defaultCooldown    = 6 * time.Hour
)

// NotificationDispatcher fans strong recent signals out to confirmed
// subscribers, holding each (subscriber, symbol) pair to one notification
// per cooldown window. The sent ledger is the only cooldown state; restarts
// lose nothing.
type NotificationDispatcher struct {
	signals     domrepo.SignalStore
	subscribers domrepo.SubscriberStore
	ledger      domrepo.NotificationLedger
	transport   domsvc.DeliveryTransport
	metrics     domrepo.Metrics
	l           *applogger.Logger

	cooldownCache pkgcache.Service

	minStrength float64
	lookback    time.Duration
	cooldown    time.Duration
	now         func() time.Time
}

type DispatcherOption func(*NotificationDispatcher)

func WithMinStrength(v float64) DispatcherOption {
	return func(d *NotificationDispatcher) { d.minStrength = v }
}

func WithLookback(v time.Duration) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if v > 0 {
			d.lookback = v
		}
	}
}

func WithCooldown(v time.Duration) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if v > 0 {
			d.cooldown = v
		}
	}
}

// WithCooldownCache puts a fast lookup in front of the ledger cooldown
// check. The cache only short-circuits pairs already inside the window; the
// ledger stays authoritative.
func WithCooldownCache(c pkgcache.Service) DispatcherOption {
	return func(d *NotificationDispatcher) { d.cooldownCache = c }
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *NotificationDispatcher) { d.now = now }
}

func NewNotificationDispatcher(
	signals domrepo.SignalStore,
	subscribers domrepo.SubscriberStore,
	ledger domrepo.NotificationLedger,
	transport domsvc.DeliveryTransport,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...DispatcherOption,
) *NotificationDispatcher {
	d := &NotificationDispatcher{
		signals:     signals,
		subscribers: subscribers,
		ledger:      ledger,
		transport:   transport,
		metrics:     metrics,
		l:           l,
		minStrength: defaultMinStrength,
		lookback:    defaultLookback,
		cooldown:    defaultCooldown,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one notification round and returns the number of deliveries
// made. A failed delivery for one pair never blocks the rest, and nothing is
// appended to the ledger unless the transport reported success.
func (d *NotificationDispatcher) Dispatch(ctx context.Context) (int, error) {
	now := d.now().UTC()

	strong, err := d.signals.StrongSince(ctx, d.minStrength, now.Add(-d.lookback))
	if err != nil {
		d.metrics.RecordError("dispatch_signals")
		return 0, fmt.Errorf("load strong signals: %w", err)
	}
	if len(strong) == 0 {
		return 0, nil
	}

	subs, err := d.subscribers.ActiveConfirmed(ctx)
	if err != nil {
		d.metrics.RecordError("dispatch_subscribers")
		return 0, fmt.Errorf("load subscribers: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	// StrongSince is newest first. Every (signal, subscriber) pair is
	// walked; after a symbol is delivered the cooldown suppresses its older
	// signals, while a failed delivery leaves them eligible.
	sent := 0
	for _, sub := range subs {
		for _, sig := range strong {
			symbol := sig.Symbol

			cooldownKey := pkgcache.GenerateKeyWithParams("cooldown", sub.Email, symbol)
			if d.cooldownCache != nil {
				if hit, err := d.cooldownCache.Exists(ctx, cooldownKey); err == nil && hit {
					d.metrics.RecordNotification("suppressed")
					continue
				}
			}

			recent, err := d.ledger.SentWithin(ctx, sub.Email, symbol, now.Add(-d.cooldown))
			if err != nil {
				d.metrics.RecordError("dispatch_cooldown")
				d.l.Error("cooldown check failed",
					applogger.String("email", sub.Email),
					applogger.String("symbol", symbol),
					applogger.Error(err))
				continue
			}
			if recent {
				d.metrics.RecordNotification("suppressed")
				continue
			}

			if err := d.transport.Deliver(ctx, sub, sig); err != nil {
				d.metrics.RecordNotification("failed")
				d.l.Error("delivery failed",
					applogger.String("email", sub.Email),
					applogger.String("symbol", symbol),
					applogger.Error(err))
				continue
			}

			if err := d.ledger.Append(ctx, &models.SentNotification{
				Email:    sub.Email,
				SignalID: sig.ID,
				SentAt:   now,
			}); err != nil {
				// Delivery happened but the ledger write failed; the pair may
				// be re-notified early. Surface it loudly.
				d.metrics.RecordError("dispatch_ledger")
				d.l.Error("ledger append failed",
					applogger.String("email", sub.Email),
					applogger.Uint("signal_id", sig.ID),
					applogger.Error(err))
			}

			if d.cooldownCache != nil {
				if err := d.cooldownCache.Set(ctx, cooldownKey, "1", d.cooldown); err != nil {
					d.l.Warn("cooldown cache set failed",
						applogger.String("email", sub.Email),
						applogger.String("symbol", symbol),
						applogger.Error(err))
				}
			}

			d.metrics.RecordNotification("sent")
			sent++
		}
	}

	d.l.Info("dispatch round complete",
		applogger.Int("strong_signals", len(strong)),
		applogger.Int("subscribers", len(subs)),
		applogger.Int("sent", sent))
	return sent, nil
}
