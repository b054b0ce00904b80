package command

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/ndef"
	"github.com/gregLibert/nbt-brand-protection/pkg/pcsc"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// InspectCommand dumps the tag content without challenging it.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:   "inspect",
		Usage:  "Read the NDEF content and certificate of a tag (no challenge is sent)",
		Action: runInspectCommand,
	}
}

func runInspectCommand(ctx context.Context, cmd *cli.Command) error {
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

	readers, err := e.watchedReaders(pc, false)
	if err != nil {
		return err
	}
	e.printf("Waiting for a tag on %s ...\n", readers[0])
	if _, err := pc.Watch(readers, e.cfg.Reader.PollInterval, e.logger).Next(ctx); err != nil {
		return err
	}

	ch := pc.Channel(readers[0], pcsc.ShareMode(e.cfg.Reader.ShareMode))
	return e.inspectTag(ctx, ch, trust.NewVerifier(anchors, trust.WithLogger(e.logger)))
}

func (e *env) inspectTag(ctx context.Context, ch nbt.Channel, verifier *trust.Verifier) error {
	cs := nbt.NewCommandSet(ch, e.logger)
	atr, err := cs.Connect(ctx, nil)
	if err != nil {
		return err
	}
	defer cs.Disconnect()
	e.printf("ATR: %X\n", atr)

	resp, err := cs.SelectApplication(ctx)
	if err != nil {
		return err
	}
	if res, err := iso7816.NewSelectResult(resp.Trace); err == nil {
		e.printf("%s\n", res.Describe())
	}
	if !resp.IsSuccess() {
		return notVerified("NDEF application not selectable")
	}

	resp, err = cs.ReadNDEFMessage(ctx)
	if err != nil {
		return err
	}
	e.printf("\n=== NDEF MESSAGE (%d bytes) ===\n", len(resp.Data))

	msg, err := ndef.Decode(resp.Data)
	if err != nil {
		e.printf("    - Decoding failed: %v\n", err)
		return notVerified("no NDEF message")
	}
	for i, rec := range msg.Records {
		e.printf("    [%d] TNF=%s Type=%q ID=%q Payload=%d bytes\n", i, rec.TNF, rec.TypeString(), rec.ID, len(rec.Payload))
	}

	cert, err := msg.Certificate()
	if err != nil {
		e.printf("\n%v\n", err)
		return notVerified("no certificate")
	}
	e.printCertificate(cert)
	return e.printTrust(verifier, cert)
}

func (e *env) printCertificate(cert *x509.Certificate) {
	e.printf("\n=== CERTIFICATE ===\n")
	e.printf("    + Subject:   %s\n", cert.Subject)
	e.printf("    + Issuer:    %s\n", cert.Issuer)
	e.printf("    + Serial:    %X\n", cert.SerialNumber)
	e.printf("    + Validity:  %s -> %s\n", cert.NotBefore.Format(time.RFC3339), cert.NotAfter.Format(time.RFC3339))
	e.printf("    + Key:       %s\n", cert.PublicKeyAlgorithm)
}

func (e *env) printTrust(verifier *trust.Verifier, cert *x509.Certificate) error {
	anchor, err := verifier.Verify(cert)
	switch {
	case errors.Is(err, trust.ErrUntrusted):
		e.printf("    + Trust:     [!!] not issued by a trusted anchor\n")
		return notVerified("untrusted certificate")
	case err != nil:
		return fmt.Errorf("trust evaluation: %w", err)
	default:
		e.printf("    + Trust:     [OK] %s\n", anchor.Name)
		return nil
	}
}
