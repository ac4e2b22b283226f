package email

import (
	"context"
	"fmt"

	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const localMessageID = "local-message-id-placeholder"

// Message is a single outbound email with both plain text and HTML
// alternatives.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message and returns a provider reference for the
// delivery record.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

func New(cfg config.Email, lg logger.Logger) (Sender, error) {
	switch cfg.Sender {
	case "", "local":
		return LocalSender{lg: lg}, nil
	case "smtp":
		return NewSMTP(cfg), nil
	default:
		return nil, fmt.Errorf("unknown email sender %q", cfg.Sender)
	}
}

// LocalSender only logs the message. It is the default for development
// and tests so that no real mail leaves the machine.
type LocalSender struct {
	lg logger.Logger
}

func (s LocalSender) Send(_ context.Context, msg Message) (string, error) {
	s.lg.Infof("Simulated sending email to %s with subject %q", msg.To, msg.Subject)
	s.lg.Debugf("email body: %s", msg.Text)

	return localMessageID, nil
}
