// Package notify fans operator alerts out to the configured chat channels.
// Alerts carry structured trade fields; each sender owns its channel's
// markup. Delivery is filtered by event type so operators receive only the
// alerts they subscribed to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Severity drives per-channel presentation: embed colors on Discord, prefix
// glyphs on Telegram.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityTrade
	SeverityWarn
)

// Field is one labeled value in an alert body.
type Field struct {
	Label string
	Value string
}

// Message is a channel-agnostic alert.
type Message struct {
	Title    string
	Body     string
	Fields   []Field
	Severity Severity
}

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to every configured sender. Notify forwards
// only events in the allowed set; NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. An empty
// events list allows every event type.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the message if its event type is subscribed.
func (n *Notifier) Notify(ctx context.Context, event string, msg Message) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, msg)
}

// NotifyAll delivers the message regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, msg Message) error {
	return n.dispatch(ctx, msg)
}

// dispatch sends to every sender; one channel failing does not stop
// delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", msg.Title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
