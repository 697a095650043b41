package email

import (
	"context"
	"sync"
	"time"

	"github.com/redmonkez12/contacts-api/internal/logging"
)

// Sender delivers notifications
type Sender interface {
	SendVerificationEmail(ctx context.Context, msg Message) error
	SendResetPasswordEmail(ctx context.Context, msg Message) error
}

// Async hands every notification to a goroutine so the request never waits
// on delivery. Failures are only logged.
type Async struct {
	next    Sender
	timeout time.Duration
	logger  *logging.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Sender, timeout time.Duration, logger *logging.Logger) *Async {
	return &Async{next: next, timeout: timeout, logger: logger}
}

func (a *Async) SendVerificationEmail(_ context.Context, msg Message) error {
	a.dispatch("verification", msg, a.next.SendVerificationEmail)
	return nil
}

func (a *Async) SendResetPasswordEmail(_ context.Context, msg Message) error {
	a.dispatch("reset password", msg, a.next.SendResetPasswordEmail)
	return nil
}

// Wait blocks until every dispatched email has finished
func (a *Async) Wait() {
	a.wg.Wait()
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() if deliveries are
// still running when ctx is done.
func (a *Async) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) dispatch(kind string, msg Message, send func(context.Context, Message) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		// Detached from the request so a finished response does not cancel delivery
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		ctx = logging.WithLogger(ctx, a.logger)

		if err := send(ctx, msg); err != nil {
			a.logger.Warn("failed to deliver email", "kind", kind, "email", msg.Email, "error", err)
		}
	}()
}
