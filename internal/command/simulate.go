package command

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt/nbttest"
)

// Simulated tag variants.
const (
	scenarioGenuine        = "genuine"
	scenarioSampleRoot     = "sample-root"
	scenarioCounterfeit    = "counterfeit"
	scenarioCloned         = "cloned"
	scenarioUnpersonalized = "unpersonalized"
	scenarioEmpty          = "empty"
)

// SimulateCommand runs a full session against a simulated tag.
func SimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Run a verification session against a simulated tag",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "scenario",
				Value: scenarioGenuine,
				Usage: "genuine, sample-root, counterfeit, cloned, unpersonalized or empty",
			},
			&cli.BoolFlag{
				Name:  "two-tags",
				Usage: "Present two tags first; the session ignores them and waits for a single one",
			},
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Print every state transition",
			},
		},
		Action: runSimulateCommand,
	}
}

func runSimulateCommand(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}

	pki, err := nbttest.NewPKI()
	if err != nil {
		return err
	}
	tag, err := simulatedTag(pki, cmd.String("scenario"))
	if err != nil {
		return err
	}

	var rounds [][]nbt.Channel
	if cmd.Bool("two-tags") {
		rounds = append(rounds, []nbt.Channel{tag, nbttest.NewTag(pki.Device)})
	}
	rounds = append(rounds, []nbt.Channel{tag})

	detect := func(ctx context.Context) ([]nbt.Channel, error) {
		if len(rounds) == 0 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		next := rounds[0]
		rounds = rounds[1:]
		return next, nil
	}

	sess, err := e.runSession(ctx, pki.Anchors(), detect)
	if err != nil {
		return err
	}
	if cmd.Bool("history") {
		for _, h := range sess.History() {
			e.printf("  %s\n", h)
		}
	}
	return outcomeError(sess.Snapshot())
}

func simulatedTag(pki *nbttest.PKI, scenario string) (*nbttest.Tag, error) {
	switch scenario {
	case scenarioGenuine:
		return nbttest.NewTag(pki.Device), nil
	case scenarioSampleRoot:
		dev, err := pki.SampleRoot.Issue("NBT Sample Device")
		if err != nil {
			return nil, err
		}
		return nbttest.NewTag(dev), nil
	case scenarioCounterfeit:
		ca, err := nbttest.NewAuthority("Counterfeit CA")
		if err != nil {
			return nil, err
		}
		dev, err := ca.Issue("NBT Device")
		if err != nil {
			return nil, err
		}
		return nbttest.NewTag(dev), nil
	case scenarioCloned:
		// Genuine certificate copied onto a tag that does not hold the key.
		tag := nbttest.NewTag(pki.Device)
		tag.Sign = func(challenge []byte) []byte {
			digest := sha256.Sum256(append([]byte("clone"), challenge...))
			sig, _ := ecdsa.SignASN1(rand.Reader, pki.Manufacturing.Key, digest[:])
			return sig
		}
		return tag, nil
	case scenarioUnpersonalized:
		tag := nbttest.NewTag(pki.Device)
		tag.SelectStatus = iso7816.SW_ERR_FILE_NOT_FOUND
		return tag, nil
	case scenarioEmpty:
		return &nbttest.Tag{Key: pki.Device.Key}, nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", scenario)
	}
}
