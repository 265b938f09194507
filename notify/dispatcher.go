package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Logger is the structured logger used by the dispatcher. Args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Sender delivers one message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Result values reported to the result observer
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Dispatcher queues notifications and runs the workers delivering them
type Dispatcher struct {
	queue          Queue
	sender         Sender
	links          Links
	logger         Logger
	workers        int
	sendTimeout    time.Duration
	enqueueTimeout time.Duration
	onResult       func(kind Kind, result string)

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithClientURL(url string) Option {
	return func(d *Dispatcher) {
		d.links = Links{ClientURL: url}
	}
}

func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithResultObserver registers a callback invoked once per message with
// ResultSent, ResultFailed or ResultDropped.
func WithResultObserver(fn func(kind Kind, result string)) Option {
	return func(d *Dispatcher) {
		d.onResult = fn
	}
}

// NewDispatcher creates a dispatcher. Call Start to run the workers.
func NewDispatcher(queue Queue, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:          queue,
		sender:         sender,
		logger:         nopLogger{},
		workers:        2,
		sendTimeout:    30 * time.Second,
		enqueueTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Start launches the workers. They stop when ctx is done or on Close.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	d.logger.Info("notification workers started", "workers", d.workers)
}

// NotifyActivation queues the activation link for recipient
func (d *Dispatcher) NotifyActivation(ctx context.Context, recipient, username, activationToken string) error {
	return d.Notify(ctx, Message{
		Kind:      KindActivation,
		Recipient: recipient,
		Username:  username,
		Link:      d.links.Activation(activationToken),
	})
}

// NotifyPasswordReset queues the password reset link for recipient
func (d *Dispatcher) NotifyPasswordReset(ctx context.Context, recipient, username, resetToken string) error {
	return d.Notify(ctx, Message{
		Kind:      KindPasswordReset,
		Recipient: recipient,
		Username:  username,
		Link:      d.links.PasswordReset(resetToken),
	})
}

// Notify queues msg and returns without waiting for delivery. A message that
// cannot be queued is dropped and logged.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	// the request may finish before the queue write does
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.enqueueTimeout)
	defer cancel()

	if err := d.queue.Enqueue(ctx, msg); err != nil {
		d.logger.Error("notification dropped", "kind", string(msg.Kind), "recipient", msg.Recipient, "error", err)
		d.report(msg.Kind, ResultDropped)
		return err
	}
	return nil
}

// Close stops the workers, waits for them and closes the queue
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		err = d.queue.Close()
		d.wg.Wait()
	})
	return err
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		msg, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			d.logger.Error("notification dequeue failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		d.deliver(ctx, id, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("notification delivery failed", "worker", id, "kind", string(msg.Kind), "recipient", msg.Recipient, "error", err)
		d.report(msg.Kind, ResultFailed)
		return
	}

	d.logger.Debug("notification sent", "worker", id, "kind", string(msg.Kind))
	d.report(msg.Kind, ResultSent)
}

func (d *Dispatcher) report(kind Kind, result string) {
	if d.onResult != nil {
		d.onResult(kind, result)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
