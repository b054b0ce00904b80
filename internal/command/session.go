package command

import (
	"context"
	"fmt"

	"github.com/gregLibert/nbt-brand-protection/pkg/brandprotect"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/session"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// detector delivers the tags present in the field each time a tag arrives.
type detector func(ctx context.Context) ([]nbt.Channel, error)

// runSession drives one session to completion, printing every message change.
// Detection runs until the session finishes or ctx is cancelled, in which case
// the session is cancelled. It returns once the detector has stopped.
func (e *env) runSession(ctx context.Context, anchors *trust.AnchorSet, detect detector) (*session.Session, error) {
	s := session.New(
		brandprotect.NewHandler(anchors, e.logger),
		session.WithLogger(e.logger),
		session.WithTimeout(e.cfg.Session.VerifyTimeout),
	)
	updates := s.Subscribe()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		last := ""
		for snap := range updates {
			if snap.Message != "" && snap.Message != last {
				e.printf("%s\n", snap.Message)
				last = snap.Message
			}
		}
	}()

	s.Start()

	detectCtx, stopDetect := context.WithCancel(ctx)
	defer stopDetect()
	detectErr := make(chan error, 1)
	go func() {
		for {
			tags, err := detect(detectCtx)
			if err != nil {
				detectErr <- err
				return
			}
			s.TagsDetected(tags...)
		}
	}()

	var runErr error
	select {
	case <-s.Done():
		stopDetect()
		<-detectErr
	case <-ctx.Done():
		s.Cancel()
		stopDetect()
		<-detectErr
	case err := <-detectErr:
		if detectCtx.Err() == nil {
			runErr = fmt.Errorf("tag detection: %w", err)
		}
		s.Cancel()
	}

	<-s.Done()
	<-printed
	return s, runErr
}
