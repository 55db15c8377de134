// Package notification provides alert delivery to external channels
// (PushPlus, generic webhooks) for trading signals and bot lifecycle events.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name identifies the delivery channel, e.g. "pushplus".
	Name() string
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends. Delivery continues past
// individual failures; the last error is returned. OnFailure, when set, is
// invoked with the failing backend's channel name.
type Multi struct {
	backends  []Notifier
	OnFailure func(channel string)
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var last error
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			if m.OnFailure != nil {
				m.OnFailure(n.Name())
			}
			last = err
		}
	}
	return last
}
