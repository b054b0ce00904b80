package pcsc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ebfe/scard"
)

// DefaultPollInterval bounds each GetStatusChange call so that a cancelled
// context is noticed.
const DefaultPollInterval = 250 * time.Millisecond

// Watcher reports cards arriving on a set of readers.
type Watcher struct {
	ctx     *scard.Context
	states  []scard.ReaderState
	poll    time.Duration
	logger  *slog.Logger
	present map[string]bool
}

// Watch creates a Watcher over readers.
func (c *Context) Watch(readers []string, poll time.Duration, logger *slog.Logger) *Watcher {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	states := make([]scard.ReaderState, len(readers))
	for i, r := range readers {
		states[i] = scard.ReaderState{Reader: r, CurrentState: scard.StateUnaware}
	}
	return &Watcher{ctx: c.ctx, states: states, poll: poll, logger: logger, present: map[string]bool{}}
}

// Next blocks until a card arrives on at least one reader and returns every
// reader holding a card at that moment.
func (w *Watcher) Next(ctx context.Context) ([]string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := w.ctx.GetStatusChange(w.states, w.poll)
		switch {
		case errors.Is(err, scard.ErrTimeout):
			continue
		case errors.Is(err, scard.ErrCancelled):
			return nil, context.Canceled
		case err != nil:
			return nil, classify("status change", err)
		}

		arrived := w.update()
		if arrived {
			return presentReaders(w.states), nil
		}
	}
}

// update records the new states and reports whether a card appeared.
func (w *Watcher) update() bool {
	arrived := false
	for i := range w.states {
		rs := &w.states[i]
		isPresent := rs.EventState&scard.StatePresent != 0
		if isPresent && !w.present[rs.Reader] {
			w.logger.Debug("card present", "reader", rs.Reader)
			arrived = true
		}
		if !isPresent && w.present[rs.Reader] {
			w.logger.Debug("card removed", "reader", rs.Reader)
		}
		w.present[rs.Reader] = isPresent
		rs.CurrentState = rs.EventState &^ scard.StateChanged
	}
	return arrived
}

func presentReaders(states []scard.ReaderState) []string {
	var out []string
	for _, rs := range states {
		if rs.EventState&scard.StatePresent != 0 && rs.EventState&scard.StateMute == 0 {
			out = append(out, rs.Reader)
		}
	}
	return out
}
