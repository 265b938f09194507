package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSender_DisabledWithoutHost(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{User: "u", Password: "p", From: "noreply@example.com"})
	require.NoError(t, err)
	assert.True(t, s.Disabled())
	assert.NoError(t, s.Send(context.Background(), Message{Recipient: "a@example.com"}))
}

func TestSMTPSender_InvalidFrom(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com:465", User: "u", Password: "p", From: "not an address"})
	assert.Error(t, err)
}

func TestWriterSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSender(&buf)

	err := s.Send(context.Background(), Message{
		Kind:      KindActivation,
		Recipient: "e1@example.com",
		Username:  "u1",
		Link:      "http://client/activate-account/tok",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "To: e1@example.com")
	assert.Contains(t, out, "Subject: Activate your account")
	assert.Contains(t, out, "http://client/activate-account/tok")
}
