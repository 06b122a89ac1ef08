// Package dispatcher implements the asynchronous event dispatcher
// described in spec.md §4.5: a subscribe/publish registry executing
// handlers with a bounded concurrency cap, and a join barrier that drains
// transitively spawned work.
//
// This is a close idiomatic-Go transcription of the original Python
// implementation's event_manager.py (asyncio.Semaphore(10), a
// slice-of-100 gather loop for Join) — see DESIGN.md.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// Kind identifies the type of a fired event, matching spec.md §4.4's
// canonical set (FOLDER_ADD, ALBUM_ADD, FOLDER_DELETE, ALBUM_DELETE,
// ALBUM_SYNC).
type Kind string

const (
	KindFolderAdd    Kind = "FOLDER_ADD"
	KindAlbumAdd     Kind = "ALBUM_ADD"
	KindFolderDelete Kind = "FOLDER_DELETE"
	KindAlbumDelete  Kind = "ALBUM_DELETE"
	KindAlbumSync    Kind = "ALBUM_SYNC"
)

// concurrencyLimit bounds the number of events being handled at once
// (spec.md §4.5/§5).
const concurrencyLimit = 10

// joinSliceSize is the number of pending tasks drained per Join iteration
// (spec.md §4.5/§9).
const joinSliceSize = 100

// Handler processes one event's payload. dryRun is the value given to
// FireEvent for this event (the reconciliation engine passes its
// Policy.DryRun). A Handler may call Dispatcher.FireEvent
// to publish further events (fan-out); Join accounts for this transitively.
type Handler func(ctx context.Context, payload any, dryRun bool) error

// Summary reports per-event-kind counts for the CLI summary (spec.md §7).
type Summary struct {
	SubmittedByKind map[Kind]int
	TotalSubmitted  int
	TotalProcessed  int
}

// Dispatcher is the process-wide event registry and executor. It is safe
// for concurrent use.
type Dispatcher struct {
	logger *slog.Logger

	mu          sync.Mutex
	handlers    map[Kind][]Handler
	handlerSeen map[Kind]map[uintptr]bool // enforces set semantics on Subscribe
	tasks       []func() error            // pending task thunks, each blocks until its event's handlers complete

	sem *semaphore.Weighted

	countsMu       sync.Mutex
	countByKind    map[Kind]int
	totalSubmitted int
	totalProcessed int

	errMu sync.Mutex
	err   error
}

// New creates an empty Dispatcher.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		logger:      logger,
		handlers:    make(map[Kind][]Handler),
		handlerSeen: make(map[Kind]map[uintptr]bool),
		sem:         semaphore.NewWeighted(concurrencyLimit),
		countByKind: make(map[Kind]int),
	}
}

// Subscribe registers h to run whenever an event of kind is fired.
// Handlers for a given kind run sequentially, in the order they were
// subscribed (spec.md §4.5: "within a single fired event, its handlers
// run sequentially in registration order"). Subscribing the same
// function value to the same kind twice is a no-op (spec.md §4.5:
// "handlers are idempotent in registration (set semantics)").
func (d *Dispatcher) Subscribe(kind Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := reflect.ValueOf(h).Pointer()

	if d.handlerSeen[kind] == nil {
		d.handlerSeen[kind] = make(map[uintptr]bool)
	}

	if d.handlerSeen[kind][key] {
		return
	}

	d.handlerSeen[kind][key] = true
	d.handlers[kind] = append(d.handlers[kind], h)
}

// FireEvent publishes an event for asynchronous processing and returns
// immediately; it does not await completion (spec.md §4.5). The event is
// tagged with a per-fire cycle ID (used in log correlation) and a task is
// appended to the pending queue for Join to drain.
func (d *Dispatcher) FireEvent(ctx context.Context, kind Kind, payload any, dryRun bool) {
	cycleID := uuid.NewString()

	d.countsMu.Lock()
	d.countByKind[kind]++
	d.totalSubmitted++
	d.countsMu.Unlock()

	d.logger.Debug("event fired",
		slog.String("kind", string(kind)),
		slog.String("cycle_id", cycleID),
		slog.Bool("dry_run", dryRun),
	)

	task := func() error {
		return d.handleEvent(ctx, kind, payload, dryRun, cycleID)
	}

	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
}

// handleEvent acquires the concurrency permit, then invokes every
// subscribed handler for kind sequentially, awaiting each (spec.md §4.5).
func (d *Dispatcher) handleEvent(ctx context.Context, kind Kind, payload any, dryRun bool, cycleID string) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("dispatcher: acquiring concurrency permit: %w", err)
	}
	defer d.sem.Release(1)

	d.mu.Lock()
	handlers := append([]Handler(nil), d.handlers[kind]...)
	d.mu.Unlock()

	var combined error

	for _, h := range handlers {
		if err := h(ctx, payload, dryRun); err != nil {
			d.logger.Error("handler failed",
				slog.String("kind", string(kind)),
				slog.String("cycle_id", cycleID),
				slog.String("error", err.Error()),
			)

			combined = multierr.Append(combined, err)
		}
	}

	d.countsMu.Lock()
	d.totalProcessed++
	d.countsMu.Unlock()

	if combined != nil {
		d.errMu.Lock()
		d.err = multierr.Append(d.err, combined)
		d.errMu.Unlock()
	}

	return combined
}

// Join drains all pending tasks, including those transitively fired by
// handlers while draining (spec.md §4.5/§9): it takes a slice of up to 100
// tasks, runs them all, then re-checks the queue, repeating until empty.
// Returns every handler error aggregated with multierr (nil if none
// failed), or a "join canceled" error if ctx ends while draining.
func (d *Dispatcher) Join(ctx context.Context) error {
	for {
		d.mu.Lock()
		n := min(len(d.tasks), joinSliceSize)

		if n == 0 {
			d.mu.Unlock()
			break
		}

		batch := d.tasks[:n]
		d.tasks = d.tasks[n:]
		d.mu.Unlock()

		var wg sync.WaitGroup

		wg.Add(len(batch))

		for _, task := range batch {
			task := task

			go func() {
				defer wg.Done()
				_ = task() // errors are aggregated into d.err by handleEvent
			}()
		}

		wg.Wait()

		if ctx.Err() != nil {
			return fmt.Errorf("dispatcher: join canceled: %w", ctx.Err())
		}
	}

	d.errMu.Lock()
	defer d.errMu.Unlock()

	return d.err
}

// Summary returns a snapshot of per-kind and total counts.
func (d *Dispatcher) Summary() Summary {
	d.countsMu.Lock()
	defer d.countsMu.Unlock()

	counts := make(map[Kind]int, len(d.countByKind))
	for k, v := range d.countByKind {
		counts[k] = v
	}

	return Summary{
		SubmittedByKind: counts,
		TotalSubmitted:  d.totalSubmitted,
		TotalProcessed:  d.totalProcessed,
	}
}
