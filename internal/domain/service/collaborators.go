package service

import (
	"context"

	"SignalForge/internal/domain/models"
)

// DeliveryTransport hands a signal payload to the external delivery service.
// Template and protocol details live behind it.
type DeliveryTransport interface {
	Deliver(ctx context.Context, recipient models.Subscriber, signal models.SignalRecord) error
}

// ExplanationGenerator turns a signal into free-text commentary. Called
// opportunistically; a failure never gates signal persistence.
type ExplanationGenerator interface {
	Explain(ctx context.Context, signal models.SignalRecord) (string, error)
}
