package notify

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
	"SignalForge/pkg/config"
)

// HTTPDeliveryTransport posts signal notifications to the external delivery
// service, which owns templating and the actual send.
type HTTPDeliveryTransport struct {
	base    *HTTPServiceBase
	retries int
}

func NewHTTPDeliveryTransport(cfg *config.Config) *HTTPDeliveryTransport {
	return &HTTPDeliveryTransport{
		base:    NewHTTPServiceBase(cfg.Notifier.URL, cfg.Notifier.Timeout),
		retries: cfg.Notifier.Retries,
	}
}

type deliveryRequest struct {
	Email            string    `json:"email"`
	Symbol           string    `json:"symbol"`
	SignalType       string    `json:"signal_type"`
	Strength         float64   `json:"strength"`
	Price            float64   `json:"price"`
	Reasoning        []string  `json:"reasoning"`
	Explanation      string    `json:"explanation,omitempty"`
	GeneratedAt      time.Time `json:"generated_at"`
	UnsubscribeToken string    `json:"unsubscribe_token,omitempty"`
}

type deliveryResponse struct {
	Status string `json:"status"`
}

func (t *HTTPDeliveryTransport) Deliver(ctx context.Context, recipient models.Subscriber, signal models.SignalRecord) error {
	var dr deliveryResponse
	err := t.base.PostJSONWithRetry(ctx, "/notify/send", deliveryRequest{
		Email:            recipient.Email,
		Symbol:           signal.Symbol,
		SignalType:       string(signal.SignalType),
		Strength:         signal.Strength,
		Price:            signal.PriceAtSignal,
		Reasoning:        signal.Reasoning,
		Explanation:      signal.Explanation,
		GeneratedAt:      signal.GeneratedAt,
		UnsubscribeToken: recipient.UnsubscribeToken,
	}, &dr, t.retries)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	if dr.Status != "" && dr.Status != "ok" && dr.Status != "sent" {
		return fmt.Errorf("delivery service status '%s'", dr.Status)
	}
	return nil
}

var _ domsvc.DeliveryTransport = (*HTTPDeliveryTransport)(nil)
