// Package notifier is the outbound mail boundary. The service only ever
// calls Send(to, subject, body); what happens behind that contract (a
// message queue, a log file in dev) is an implementation choice.
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrTransient marks failures worth retrying: broker unavailable, timeouts.
// Permanent rejections are returned unwrapped and never retried.
var ErrTransient = errors.New("transient notifier failure")

// Notifier delivers one rendered message to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Retry wraps a Notifier with a bounded retry policy: a small fixed number
// of attempts with doubling backoff, applied only to transient failures.
type Retry struct {
	Next     Notifier
	Attempts int
	Backoff  time.Duration
	Log      *logrus.Logger
}

// WithRetry decorates next with the default policy of 3 attempts starting
// at 500ms backoff.
func WithRetry(next Notifier, log *logrus.Logger) *Retry {
	return &Retry{Next: next, Attempts: 3, Backoff: 500 * time.Millisecond, Log: log}
}

// Send forwards to the wrapped notifier, sleeping between transient
// failures. The context cancels the wait as well as the attempts.
func (r *Retry) Send(ctx context.Context, to, subject, body string) error {
	backoff := r.Backoff
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err = r.Next.Send(ctx, to, subject, body)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return err
		}
		if r.Log != nil {
			r.Log.WithError(err).WithField("attempt", attempt).Warn("notifier send failed")
		}
	}
	return err
}

// LogNotifier is the broker-less fallback: it records the message through
// the application logger and reports success. Useful in dev and tests.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (l *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	l.Logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("email (log notifier)")
	return nil
}
