package session

import (
	"context"
	"errors"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
)

// EVENT LOOP:
//
//	Initial --Start--> Polling --one tag, connect+select OK--> Connected
//	   |                  |                                       |
//	   +------Cancel------+--select rejected / error / success----+--> Disconnected
//
// The tag work (connect, select, handler) runs in a task goroutine. The task
// never touches the state: it posts events tagged with its attempt id and the
// loop drops events whose id is not the active attempt.

type event interface{ isEvent() }

type startEvent struct{}

type tagsEvent struct{ channels []nbt.Channel }

type cancelEvent struct{}

type connectedEvent struct{ id uint64 }

type progressEvent struct {
	id      uint64
	message string
}

type resultEvent struct {
	id       uint64
	rejected bool
	err      error
}

func (startEvent) isEvent()     {}
func (tagsEvent) isEvent()      {}
func (cancelEvent) isEvent()    {}
func (connectedEvent) isEvent() {}
func (progressEvent) isEvent()  {}
func (resultEvent) isEvent()    {}

func (s *Session) loop() {
	defer s.finish()

	for env := range s.events {
		state := s.handle(env.ev)
		if env.ack != nil {
			close(env.ack)
		}
		if state == StateDisconnected {
			return
		}
	}
}

// handle applies one event and returns the resulting state.
func (s *Session) handle(ev event) State {
	cur := s.Snapshot()

	switch e := ev.(type) {
	case startEvent:
		if cur.State == StateInitial {
			s.publish(Snapshot{State: StatePolling, Outcome: OutcomeUnknown, Message: s.messages.Start})
		}

	case tagsEvent:
		s.onTags(cur, e.channels)

	case connectedEvent:
		if s.isActive(e.id) && cur.State == StatePolling {
			s.publish(Snapshot{State: StateConnected, Outcome: cur.Outcome, Message: cur.Message})
		}

	case progressEvent:
		if s.isActive(e.id) {
			s.publish(Snapshot{State: cur.State, Outcome: cur.Outcome, Message: e.message})
		}

	case resultEvent:
		if !s.isActive(e.id) {
			s.logger.Debug("discarding stale attempt result", "attempt", e.id)
			break
		}
		s.onResult(e)

	case cancelEvent:
		if cur.State == StateDisconnected {
			break
		}
		if a, ok := s.slot.(*activeAttempt); ok {
			a.cancel()
			a.commands.Disconnect()
			s.logger.Info("attempt cancelled", "attempt", a.id)
		}
		s.slot = noAttempt{}
		s.publish(Snapshot{State: StateDisconnected, Outcome: OutcomeUnknown})
	}

	return s.Snapshot().State
}

func (s *Session) onTags(cur Snapshot, channels []nbt.Channel) {
	if cur.State != StatePolling {
		return
	}
	if _, busy := s.slot.(*activeAttempt); busy {
		return
	}
	if len(channels) != 1 {
		s.logger.Debug("ignoring tag detection", "tags", len(channels))
		return
	}

	s.nextID++
	commands := nbt.NewCommandSet(channels[0], s.logger)

	var ctx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	a := &activeAttempt{id: s.nextID, commands: commands, cancel: cancel}
	s.slot = a
	context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			commands.Disconnect()
		}
	})
	s.logger.Info("tag detected", "attempt", a.id)

	go s.run(ctx, a)
}

func (s *Session) onResult(e resultEvent) {
	a := s.slot.(*activeAttempt)
	a.commands.Disconnect()
	a.cancel()
	s.slot = noAttempt{}

	switch {
	case e.rejected:
		s.logger.Info("application not selectable", "attempt", e.id)
		s.publish(Snapshot{State: StateDisconnected, Outcome: OutcomeFailed, Message: s.messages.NotPersonalized})
	case e.err != nil:
		s.logger.Info("attempt failed", "attempt", e.id, "err", e.err)
		s.publish(Snapshot{State: StateDisconnected, Outcome: OutcomeFailed, Message: s.messages.ForError(e.err)})
	default:
		s.logger.Info("attempt verified", "attempt", e.id)
		s.publish(Snapshot{State: StateDisconnected, Outcome: OutcomeVerified, Message: s.messages.Verified})
	}
}

func (s *Session) isActive(id uint64) bool {
	a, ok := s.slot.(*activeAttempt)
	return ok && a.id == id
}

// run is the task of one attempt. It only communicates through events.
func (s *Session) run(ctx context.Context, a *activeAttempt) {
	if _, err := a.commands.Connect(ctx, s.initData); err != nil {
		s.post(resultEvent{id: a.id, err: err})
		return
	}
	// A cancel or deadline that fired while connecting found nothing to
	// disconnect.
	if err := ctx.Err(); err != nil {
		a.commands.Disconnect()
		s.post(resultEvent{id: a.id, err: err})
		return
	}

	resp, err := a.commands.SelectApplication(ctx)
	if err != nil {
		s.post(resultEvent{id: a.id, err: err})
		return
	}
	if !resp.IsSuccess() {
		s.post(resultEvent{id: a.id, rejected: true})
		return
	}
	s.post(connectedEvent{id: a.id})

	progress := func(message string) {
		s.post(progressEvent{id: a.id, message: message})
	}
	err = s.handler.HandleTag(ctx, a.commands, progress)
	s.post(resultEvent{id: a.id, err: err})
}
