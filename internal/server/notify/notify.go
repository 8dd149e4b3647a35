// Package notify delivers short out-of-band messages such as one-time codes
// and request status changes.
package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/xxiimcha/lk-web/internal/logging"
)

var ErrInvalidMessage = errors.New("invalid message")

type Message struct {
	To      string
	Subject string
	Body    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrInvalidMessage
	}
	// header fields must stay on one line
	if strings.ContainsAny(m.To, "\r\n,") || strings.ContainsAny(m.Subject, "\r\n") {
		return ErrInvalidMessage
	}
	return nil
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of sending them. It is
// meant for local development.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	n.log.Info(ctx, "notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
