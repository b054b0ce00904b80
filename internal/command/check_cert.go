package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// CheckCertCommand evaluates a certificate file against the trust anchors.
func CheckCertCommand() *cli.Command {
	return &cli.Command{
		Name:      "check-cert",
		Usage:     "Check a PEM or DER certificate against the trust anchors",
		ArgsUsage: "FILE",
		Action:    runCheckCertCommand,
	}
}

func runCheckCertCommand(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one certificate file")
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	anchors, err := e.anchors()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	cert, err := trust.ParseCertificate(data)
	if err != nil {
		return err
	}

	e.printCertificate(cert)
	return e.printTrust(trust.NewVerifier(anchors, trust.WithLogger(e.logger)), cert)
}
