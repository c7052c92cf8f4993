package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// AsyncNotifier sends in the background so the caller's response never waits
// on the mail server. Failures go to the log and to Sentry.
type AsyncNotifier struct {
	next    Notifier
	timeout time.Duration
	logger  *slog.Logger
	report  func(kind string, err error)
	wg      sync.WaitGroup
}

func NewAsyncNotifier(next Notifier, timeout time.Duration, logger *slog.Logger) *AsyncNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AsyncNotifier{
		next:    next,
		timeout: timeout,
		logger:  logger,
		report:  reportToSentry,
	}
}

func (n *AsyncNotifier) SendVerification(ctx context.Context, email, link string) error {
	n.dispatch(ctx, "verification", email, func(ctx context.Context) error {
		return n.next.SendVerification(ctx, email, link)
	})
	return nil
}

func (n *AsyncNotifier) SendTwoFactorCode(ctx context.Context, email, code string) error {
	n.dispatch(ctx, "two_factor", email, func(ctx context.Context) error {
		return n.next.SendTwoFactorCode(ctx, email, code)
	})
	return nil
}

// Wait blocks until every dispatched send has finished.
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}

func (n *AsyncNotifier) dispatch(ctx context.Context, kind, email string, send func(context.Context) error) {
	// the request context ends with the response; keep its values only
	base := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		sendCtx, cancel := context.WithTimeout(base, n.timeout)
		defer cancel()

		if err := send(sendCtx); err != nil {
			n.logger.ErrorContext(sendCtx, "notification delivery failed",
				"action", "notify."+kind,
				"email", email,
				"error", err,
			)
			n.report(kind, err)
		}
	}()
}

func reportToSentry(kind string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("notification", kind)
		sentry.CaptureException(err)
	})
}
