// Package notify delivers account notifications off the request path. The
// request only enqueues a Message; workers owned by a Dispatcher dequeue it
// and hand it to a Sender. Delivery failures are logged and counted, never
// retried.
package notify

import (
	"fmt"
	"strings"
)

// Kind names the notification template
type Kind string

const (
	KindActivation    Kind = "activation"
	KindPasswordReset Kind = "password_reset"
)

// Message is one queued notification
type Message struct {
	Kind      Kind   `json:"kind"`
	Recipient string `json:"recipient"`
	Username  string `json:"username"`
	Link      string `json:"link"`
}

// Subject returns the email subject for the message kind
func (m Message) Subject() string {
	switch m.Kind {
	case KindActivation:
		return "Activate your account"
	case KindPasswordReset:
		return "Reset your password"
	default:
		return "Account notification"
	}
}

// Body returns the plain text email body
func (m Message) Body() string {
	var b strings.Builder
	if m.Username != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", m.Username)
	} else {
		b.WriteString("Hello,\n\n")
	}

	switch m.Kind {
	case KindActivation:
		b.WriteString("Your account was created. Follow the link below to activate it:\n\n")
	case KindPasswordReset:
		b.WriteString("A password reset was requested for your account. The link below is valid for a short time:\n\n")
	}

	b.WriteString(m.Link)
	b.WriteString("\n")

	if m.Kind == KindPasswordReset {
		b.WriteString("\nIf you did not request it you can ignore this email.\n")
	}
	return b.String()
}

// Links builds the links mailed to clients
type Links struct {
	ClientURL string
}

// Activation returns {clientURL}/activate-account/{token}
func (l Links) Activation(token string) string {
	return l.join("activate-account", token)
}

// PasswordReset returns {clientURL}/update-password/{token}
func (l Links) PasswordReset(token string) string {
	return l.join("update-password", token)
}

func (l Links) join(route, token string) string {
	return strings.TrimRight(l.ClientURL, "/") + "/" + route + "/" + token
}
