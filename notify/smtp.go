package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
)

// SMTPConfig holds the mail server settings. Leaving Host, User or Password
// empty disables sending.
type SMTPConfig struct {
	Host       string
	User       string
	Password   string
	From       string
	SkipVerify bool
}

// SMTPSender delivers notifications by email
type SMTPSender struct {
	client      *goemail.SMTP
	mailName    string
	mailAddress string
	disabled    bool
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender returns a sender for cfg
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return &SMTPSender{disabled: true}, nil
	}

	u := &url.URL{
		Scheme: "smtps",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host,
	}

	a, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	tlsConfig := &tls.Config{}
	if cfg.SkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	client, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, err
	}

	return &SMTPSender{
		client:      client,
		mailName:    a.Name,
		mailAddress: a.Address,
	}, nil
}

// Disabled reports whether the sender drops every message
func (s *SMTPSender) Disabled() bool {
	return s.disabled
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.disabled {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := goemail.NewMessage(s.mailAddress, msg.Subject(), msg.Body())
	m.SetName(s.mailName)
	m.AddBCC(msg.Recipient)

	return s.client.Send(m)
}
