package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/internal/config"
	"github.com/gregLibert/nbt-brand-protection/internal/logging"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// New builds the nbt-verify command tree.
func New() *cli.Command {
	return &cli.Command{
		Name:  "nbt-verify",
		Usage: "Brand protection checks for OPTIGA Authenticate NBT tags",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "auto, text or json (overrides config)",
			},
			&cli.StringFlag{
				Name:  "reader",
				Usage: "Reader name substring (overrides config)",
			},
			&cli.IntFlag{
				Name:  "reader-index",
				Usage: "Reader index (overrides config)",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "anchors-dir",
				Usage: "Directory holding the trust anchor PEM files (overrides config)",
			},
		},
		Commands: []*cli.Command{
			VerifyCommand(),
			ReadersCommand(),
			InspectCommand(),
			CheckCertCommand(),
			SimulateCommand(),
		},
	}
}

// env is what every sub-command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
}

func setup(cmd *cli.Command) (*env, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cmd.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := cmd.String("reader"); v != "" {
		cfg.Reader.Name = v
	}
	if v := cmd.Int("reader-index"); v >= 0 {
		cfg.Reader.Index = int(v)
	}
	if v := cmd.String("anchors-dir"); v != "" {
		cfg.Trust.AnchorsDir = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	root := cmd.Root()
	errOut := root.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	logger, err := logging.New(errOut, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	out := root.Writer
	if out == nil {
		out = os.Stdout
	}
	return &env{cfg: cfg, logger: logger, out: out}, nil
}

// anchors loads the configured trust anchors. A failure here is fatal for the
// command: no attempt can succeed without them.
func (e *env) anchors() (*trust.AnchorSet, error) {
	var (
		set *trust.AnchorSet
		err error
	)
	if dir := e.cfg.Trust.AnchorsDir; dir != "" {
		set, err = trust.LoadAnchors(os.DirFS(dir))
	} else {
		set, err = trust.DefaultAnchors()
	}
	if err != nil {
		return nil, fmt.Errorf("loading trust anchors: %w", err)
	}
	e.logger.Debug("trust anchors loaded",
		"manufacturing", set.Manufacturing.Subject.CommonName,
		"sample_root", set.SampleRoot.Subject.CommonName)
	return set, nil
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

// notVerified is returned when the command ran but the tag did not pass.
func notVerified(msg string) error {
	return cli.Exit(msg, 1)
}
