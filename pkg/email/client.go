package email

import (
	"context"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/estacaoterapia/estacao_backend/config"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Client struct {
	cfg Config
}

var _ Sender = (*Client)(nil)

func NewFromCentral(cfg config.EmailConfig) *Client {
	return New(FromCentralConfig(cfg))
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Send dials SMTP per message. gomail has no context support, so the dial
// runs on its own goroutine and Send returns at the earlier of ctx's
// deadline and the configured SMTP timeout.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled{}
	}

	msg, err := buildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	d := gomail.NewDialer(c.cfg.SMTPHost, c.cfg.SMTPPort, c.cfg.SMTPUsername, c.cfg.SMTPPassword)
	d.SSL = c.cfg.SMTPUseTLS

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(msg) }()

	timer := time.NewTimer(c.cfg.SMTPTimeout())
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Provider: "smtp", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, ErrInvalidMessage{Reason: "from is required"}
	}
	to := cleanAddrs(m.To)
	if len(to) == 0 {
		return nil, ErrInvalidMessage{Reason: "at least one recipient is required"}
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return nil, ErrInvalidMessage{Reason: "subject is required"}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)

	hasText := strings.TrimSpace(m.TextBody) != ""
	hasHTML := strings.TrimSpace(m.HTMLBody) != ""
	switch {
	case hasText && hasHTML:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case hasHTML:
		msg.SetBody("text/html", m.HTMLBody)
	case hasText:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, ErrInvalidMessage{Reason: "either TextBody or HTMLBody is required"}
	}
	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
