// Package notify defines operator notification sinks fed from the event bus.
package notify

import (
	"context"

	"wabot/pkg/bus"
)

// Notifier forwards automation events to an external transport.
type Notifier interface {
	Name() string
	Run(ctx context.Context, events <-chan bus.Event) error
}

// QRSource yields the current login QR as PNG bytes.
type QRSource interface {
	QRImage(ctx context.Context) ([]byte, bool, error)
}
