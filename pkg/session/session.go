// Package session drives one tag interaction from polling to disconnect.
//
// A Session owns an event loop goroutine which is the only writer of the
// observable state. Callers post events (Start, TagsDetected, Cancel) and read
// the state through Snapshot, History or Subscribe.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
)

// Handler runs the use case on a connected tag whose application is selected.
// progress updates the session message and may be called from any goroutine.
type Handler interface {
	HandleTag(ctx context.Context, commands *nbt.CommandSet, progress func(message string)) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, commands *nbt.CommandSet, progress func(message string)) error

func (f HandlerFunc) HandleTag(ctx context.Context, commands *nbt.CommandSet, progress func(message string)) error {
	return f(ctx, commands, progress)
}

// Option configures a Session.
type Option func(*Session)

// WithMessages replaces the message table.
func WithMessages(m Messages) Option {
	return func(s *Session) { s.messages = m }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithTimeout bounds the work done after a tag is detected. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithInitData sets the bytes passed to Channel.Connect.
func WithInitData(b []byte) Option {
	return func(s *Session) { s.initData = b }
}

// attempt is the tag slot of the loop: either noAttempt or *activeAttempt.
type attempt interface{ isAttempt() }

type noAttempt struct{}

type activeAttempt struct {
	id       uint64
	commands *nbt.CommandSet
	cancel   context.CancelFunc
}

func (noAttempt) isAttempt()      {}
func (*activeAttempt) isAttempt() {}

// Session is a single physical attempt. Once Disconnected it is finished; start
// a new attempt with a new Session.
type Session struct {
	handler  Handler
	messages Messages
	logger   *slog.Logger
	timeout  time.Duration
	initData []byte

	events chan envelope
	done   chan struct{}

	mu      sync.Mutex
	current Snapshot
	history []Snapshot
	subs    []chan Snapshot

	// Owned by the loop goroutine.
	slot   attempt
	nextID uint64
}

// New creates a session in StateInitial and starts its event loop. The loop
// runs until the session is Disconnected: a session dropped before it finished
// must be cancelled.
func New(handler Handler, opts ...Option) *Session {
	s := &Session{
		handler:  handler,
		messages: DefaultMessages(),
		logger:   slog.Default(),
		events:   make(chan envelope),
		done:     make(chan struct{}),
		slot:     noAttempt{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current = Snapshot{State: StateInitial, Outcome: OutcomeUnknown}
	s.history = []Snapshot{s.current}

	go s.loop()
	return s
}

// Start begins polling. It has no effect outside StateInitial.
// Like TagsDetected and Cancel, it returns once the event is applied.
func (s *Session) Start() {
	s.send(startEvent{})
}

// TagsDetected reports the tags currently in the field. Only a single tag is
// handled; zero or several tags are ignored and polling continues.
func (s *Session) TagsDetected(channels ...nbt.Channel) {
	s.send(tagsEvent{channels: channels})
}

// Cancel stops the attempt. The in-flight operation is aborted, the tag is
// disconnected and any pending result is discarded. No message is shown.
func (s *Session) Cancel() {
	s.send(cancelEvent{})
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// History returns every published snapshot in order, starting with Initial.
func (s *Session) History() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.history...)
}

// Subscribe returns a channel receiving the latest snapshot after each change.
// A slow reader only sees the most recent value. The channel is closed when the
// session finishes.
func (s *Session) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	defer s.mu.Unlock()

	ch <- s.current
	select {
	case <-s.done:
		close(ch)
	default:
		s.subs = append(s.subs, ch)
	}
	return ch
}

// Done is closed once the session reached StateDisconnected.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is finished or ctx is done.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

type envelope struct {
	ev  event
	ack chan struct{}
}

// post queues an event without waiting for it to be applied.
func (s *Session) post(ev event) {
	select {
	case s.events <- envelope{ev: ev}:
	case <-s.done:
	}
}

// send queues an event and waits until the loop applied it.
func (s *Session) send(ev event) {
	ack := make(chan struct{})
	select {
	case s.events <- envelope{ev: ev, ack: ack}:
	case <-s.done:
		return
	}
	<-ack
}

func (s *Session) publish(next Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next == s.current {
		return
	}
	s.current = next
	s.history = append(s.history, next)
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.done)
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.Snapshot())
}
