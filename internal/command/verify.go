package command

import (
	"context"
	"fmt"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/pcsc"
	"github.com/gregLibert/nbt-brand-protection/pkg/session"
)

// VerifyCommand waits for a tag and runs one brand verification.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Wait for a tag on the reader and verify its authenticity",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all-readers",
				Usage: "Watch every reader; a tag on more than one reader at once is ignored",
			},
		},
		Action: runVerifyCommand,
	}
}

func runVerifyCommand(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	anchors, err := e.anchors()
	if err != nil {
		return err
	}

	pc, err := pcsc.Establish()
	if err != nil {
		return err
	}
	defer pc.Release()

	readers, err := e.watchedReaders(pc, cmd.Bool("all-readers"))
	if err != nil {
		return err
	}
	e.logger.Info("watching readers", "readers", readers)

	watcher := pc.Watch(readers, e.cfg.Reader.PollInterval, e.logger)
	share := pcsc.ShareMode(e.cfg.Reader.ShareMode)
	detect := func(ctx context.Context) ([]nbt.Channel, error) {
		present, err := watcher.Next(ctx)
		if err != nil {
			return nil, err
		}
		channels := make([]nbt.Channel, len(present))
		for i, r := range present {
			channels[i] = pc.Channel(r, share)
		}
		return channels, nil
	}

	s, err := e.runSession(ctx, anchors, detect)
	if err != nil {
		return err
	}
	return outcomeError(s.Snapshot())
}

func (e *env) watchedReaders(pc *pcsc.Context, all bool) ([]string, error) {
	readers, err := pc.Readers()
	if err != nil {
		return nil, err
	}
	if all {
		if len(readers) == 0 {
			return nil, fmt.Errorf("%w: no reader connected", pcsc.ErrResourceUnavailable)
		}
		return slices.Clone(readers), nil
	}
	r, err := pcsc.SelectReader(readers, e.cfg.Reader.Name, e.cfg.Reader.Index)
	if err != nil {
		return nil, err
	}
	return []string{r}, nil
}

// outcomeError turns a finished session into the command exit status.
func outcomeError(snap session.Snapshot) error {
	switch snap.Outcome {
	case session.OutcomeVerified:
		return nil
	case session.OutcomeUnknown:
		return notVerified("cancelled")
	default:
		return notVerified("not verified")
	}
}
