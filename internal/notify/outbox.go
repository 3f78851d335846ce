package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tggeco/challenge-api/internal/otel"
	"github.com/tggeco/challenge-api/internal/queue"
)

// Accepts notifications from request handlers. Enqueue never fails the caller;
// problems are logged.
type Outbox interface {
	Enqueue(ctx context.Context, event Event)
}

var _ Outbox = (*QueueOutbox)(nil)

// Hands events to the worker through the notification queue.
type QueueOutbox struct {
	q queue.Queuer
	l *slog.Logger
}

func NewQueueOutbox(q queue.Queuer, l *slog.Logger) *QueueOutbox {
	return &QueueOutbox{q: q, l: l.WithGroup("outbox")}
}

func (o *QueueOutbox) Enqueue(ctx context.Context, event Event) {
	event.Trace = otel.Inject(ctx)

	if err := o.q.Enqueue(ctx, event); err != nil {
		o.l.ErrorContext(ctx, "failed to enqueue notification", "kind", event.Kind, "error", err)
	}
}

var _ Outbox = (*DirectOutbox)(nil)

const defaultDirectTimeout = 30 * time.Second

// Sends in a background goroutine of the server process. Used when no queue is
// configured.
type DirectOutbox struct {
	dispatcher *Dispatcher
	wg         sync.WaitGroup
	timeout    time.Duration
}

func NewDirectOutbox(dispatcher *Dispatcher) *DirectOutbox {
	return &DirectOutbox{dispatcher: dispatcher, timeout: defaultDirectTimeout}
}

func (o *DirectOutbox) Enqueue(ctx context.Context, event Event) {
	// detach so the send outlives the request
	ctx = context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		// already logged by the dispatcher
		_ = o.dispatcher.Deliver(ctx, event)
	}()
}

// Block until in flight sends finish
func (o *DirectOutbox) Wait() {
	o.wg.Wait()
}
