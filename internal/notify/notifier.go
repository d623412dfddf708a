// Package notify defines the push notification contract and its adapters.
// Delivery is fire-and-forget from the engine's point of view: callers log
// send failures and continue, a missed push is never a correctness failure.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is one push notification payload.
type Message struct {
	Title string
	Body  string
	// Data carries optional key/value metadata for the client application.
	Data map[string]string
}

// Notifier delivers a message to a device token.
type Notifier interface {
	Send(ctx context.Context, token string, msg Message) error
}

// LogNotifier writes notifications to the log instead of a push service.
// Used in development mode and wherever no push credentials are configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message and always succeeds.
func (n *LogNotifier) Send(_ context.Context, token string, msg Message) error {
	n.logger.Info("notification",
		zap.String("token", truncateToken(token)),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body))
	return nil
}

// truncateToken keeps logs readable and avoids writing whole device tokens.
func truncateToken(token string) string {
	if len(token) > 12 {
		return token[:12] + "…"
	}
	return token
}
