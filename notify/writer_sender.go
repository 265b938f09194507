package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// WriterSender writes every message to an io.Writer instead of mailing it.
// It is the development outbox used when SMTP is not configured.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Sender = (*WriterSender)(nil)

// NewWriterSender writes to w, or stdout when w is nil
func NewWriterSender(w io.Writer) *WriterSender {
	if w == nil {
		w = os.Stdout
	}
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.w, "To: %s\nSubject: %s\n\n%s----\n", msg.Recipient, msg.Subject(), msg.Body())
	return err
}
