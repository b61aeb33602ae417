// Package notify delivers best-effort messages about request lifecycle events.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/yukikurage/favor-exchange-api/internal/metrics"
	"go.uber.org/zap"
)

// Event names a lifecycle event.
type Event string

const (
	EventAssignmentClaimed   Event = "assignment_claimed"
	EventAssignmentStarted   Event = "assignment_started"
	EventAssignmentReleased  Event = "assignment_released"
	EventAssignmentCompleted Event = "assignment_completed"
	EventAssignmentConfirmed Event = "assignment_confirmed"
	EventRequestDisputed     Event = "request_disputed"
	EventRequestCancelled    Event = "request_cancelled"
	EventPasswordReset       Event = "password_reset"
)

// Message is one notification addressed to a single recipient.
type Message struct {
	Event   Event
	To      string
	Subject string
	Body    string
}

// Notifier delivers a message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs msg.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("notification",
		zap.String("event", string(msg.Event)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Dispatcher sends notifications without ever failing the caller.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewDispatcher wraps notifier. A nil notifier disables delivery.
func NewDispatcher(notifier Notifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifier: notifier, logger: logger}
}

// Dispatch sends msg. Failures are logged, counted and discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if d == nil || d.notifier == nil {
		return
	}
	if strings.TrimSpace(msg.To) == "" {
		d.logger.Debug("notification skipped, no recipient", zap.String("event", string(msg.Event)))
		return
	}

	if err := d.send(ctx, msg); err != nil {
		metrics.NotificationFailures.WithLabelValues(string(msg.Event)).Inc()
		d.logger.Warn("notification failed",
			zap.String("event", string(msg.Event)),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) send(ctx context.Context, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return d.notifier.Send(ctx, msg)
}
