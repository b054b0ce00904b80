package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/pkg/pcsc"
)

// ReadersCommand lists the PC/SC readers.
func ReadersCommand() *cli.Command {
	return &cli.Command{
		Name:   "readers",
		Usage:  "List PC/SC readers",
		Action: runReadersCommand,
	}
}

func runReadersCommand(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	pc, err := pcsc.Establish()
	if err != nil {
		return err
	}
	defer pc.Release()

	readers, err := pc.Readers()
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		e.printf("No reader connected.\n")
		return nil
	}

	selected, _ := pcsc.SelectReader(readers, e.cfg.Reader.Name, e.cfg.Reader.Index)
	for i, r := range readers {
		mark := " "
		if r == selected {
			mark = "*"
		}
		e.printf("%s [%d] %s\n", mark, i, r)
	}
	return nil
}
