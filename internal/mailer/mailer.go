package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"billing-relay/internal/billing/application"
	billing "billing-relay/internal/billing/domain"
)

const defaultPort = 587

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	// Insecure allows plaintext delivery to relays without STARTTLS.
	Insecure bool
}

// Dispatcher sends messages over SMTP.
type Dispatcher struct {
	cfg  Config
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewDispatcher constructs a Dispatcher. Missing credentials are reported by Ready.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	d := &Dispatcher{cfg: cfg}
	d.send = d.dialAndSend
	return d
}

// Ready reports whether mail can be sent.
func (d *Dispatcher) Ready() error {
	if d == nil {
		return billing.ErrMailerCredentialsMissing
	}
	var missing []string
	if strings.TrimSpace(d.cfg.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(d.cfg.Username) == "" {
		missing = append(missing, "username")
	}
	if d.cfg.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", billing.ErrMailerCredentialsMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Send delivers one message with its attachments.
func (d *Dispatcher) Send(ctx context.Context, msg application.Message) error {
	if err := d.Ready(); err != nil {
		return err
	}
	m, err := d.buildMessage(msg)
	if err != nil {
		return err
	}
	return d.send(ctx, m)
}

func (d *Dispatcher) buildMessage(msg application.Message) (*mail.Msg, error) {
	from := msg.From
	if from == "" {
		from = d.cfg.From
	}
	if from == "" {
		from = d.cfg.Username
	}
	if msg.To == "" {
		return nil, errors.New("mailer: empty recipient")
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("mailer: from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mailer: to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, att := range msg.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := m.AttachReader(att.Filename, bytes.NewReader(att.Content), opts...); err != nil {
			return nil, fmt.Errorf("mailer: attach %s: %w", att.Filename, err)
		}
	}
	return m, nil
}

func (d *Dispatcher) dialAndSend(ctx context.Context, m *mail.Msg) error {
	policy := mail.TLSMandatory
	if d.cfg.Insecure {
		policy = mail.TLSOpportunistic
	}
	client, err := mail.NewClient(d.cfg.Host,
		mail.WithPort(d.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(d.cfg.Username),
		mail.WithPassword(d.cfg.Password),
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(d.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
