package command

import (
	"bytes"
	"context"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/gregLibert/nbt-brand-protection/internal/config"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt/nbttest"
	"github.com/gregLibert/nbt-brand-protection/pkg/session"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// run executes the CLI and returns stdout and the returned error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := New()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := app.Run(context.Background(), append([]string{"nbt-verify", "--log-level", "error"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func TestNew(t *testing.T) {
	app := New()
	require.Equal(t, "nbt-verify", app.Name)

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"verify", "readers", "inspect", "check-cert", "simulate"}, names)
}

func TestSimulate(t *testing.T) {
	msgs := session.DefaultMessages()

	tests := []struct {
		name     string
		args     []string
		wantMsg  string
		wantExit int
	}{
		{"Genuine", []string{"simulate"}, msgs.Verified, 0},
		{"Sample root", []string{"simulate", "--scenario", "sample-root"}, msgs.Verified, 0},
		{"Counterfeit", []string{"simulate", "--scenario", "counterfeit"}, msgs.NotVerified, 1},
		{"Cloned", []string{"simulate", "--scenario", "cloned"}, msgs.NotVerified, 1},
		{"Unpersonalized", []string{"simulate", "--scenario", "unpersonalized"}, msgs.NotPersonalized, 1},
		{"Empty", []string{"simulate", "--scenario", "empty"}, msgs.NotVerified, 1},
		{"Two tags first", []string{"simulate", "--two-tags"}, msgs.Verified, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.Contains(t, out, tt.wantMsg)
			if tt.wantExit == 0 {
				require.NoError(t, err)
				return
			}
			require.Equal(t, tt.wantExit, exitCode(err), "err = %v", err)
		})
	}
}

func TestSimulate_History(t *testing.T) {
	out, err := run(t, "simulate", "--history")
	require.NoError(t, err)
	for _, state := range []string{"Initial", "Polling", "Connected", "Disconnected/Verified"} {
		require.Contains(t, out, state)
	}
}

func TestSimulate_UnknownScenario(t *testing.T) {
	_, err := run(t, "simulate", "--scenario", "haunted")
	require.ErrorContains(t, err, "unknown scenario")
}

func writePKI(t *testing.T, pki *nbttest.PKI) (anchorsDir, deviceFile string) {
	t.Helper()
	dir := t.TempDir()
	anchorsDir = filepath.Join(dir, "anchors")
	require.NoError(t, os.Mkdir(anchorsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(anchorsDir, trust.ManufacturingCAName+".pem"), pki.Manufacturing.PEM(), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(anchorsDir, trust.SampleRootName+".pem"), pki.SampleRoot.PEM(), 0o600))

	deviceFile = filepath.Join(dir, "device.pem")
	devPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: pki.Device.Cert.Raw})
	require.NoError(t, os.WriteFile(deviceFile, devPEM, 0o600))
	return anchorsDir, deviceFile
}

func TestCheckCert(t *testing.T) {
	pki := nbttest.MustPKI()
	anchorsDir, deviceFile := writePKI(t, pki)

	t.Run("Trusted with configured anchors", func(t *testing.T) {
		out, err := run(t, "--anchors-dir", anchorsDir, "check-cert", deviceFile)
		require.NoError(t, err)
		require.Contains(t, out, "[OK] "+trust.ManufacturingCAName)
	})

	t.Run("Untrusted with bundled anchors", func(t *testing.T) {
		out, err := run(t, "check-cert", deviceFile)
		require.Equal(t, 1, exitCode(err), "err = %v", err)
		require.Contains(t, out, "not issued by a trusted anchor")
	})

	t.Run("DER input", func(t *testing.T) {
		der := filepath.Join(t.TempDir(), "device.der")
		require.NoError(t, os.WriteFile(der, pki.Device.Cert.Raw, 0o600))
		_, err := run(t, "--anchors-dir", anchorsDir, "check-cert", der)
		require.NoError(t, err)
	})

	t.Run("Missing anchors are fatal", func(t *testing.T) {
		empty := t.TempDir()
		_, err := run(t, "--anchors-dir", empty, "check-cert", deviceFile)
		var rerr *trust.ResourceNotFoundError
		require.ErrorAs(t, err, &rerr)
	})

	t.Run("Argument required", func(t *testing.T) {
		_, err := run(t, "check-cert")
		require.Error(t, err)
	})
}

func TestInspectTag(t *testing.T) {
	pki := nbttest.MustPKI()
	var out bytes.Buffer
	e := &env{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:    &out,
	}

	t.Run("Personalized tag", func(t *testing.T) {
		out.Reset()
		tag := nbttest.NewTag(pki.Device)

		err := e.inspectTag(context.Background(), tag, trust.NewVerifier(pki.Anchors()))
		require.NoError(t, err)
		require.Contains(t, out.String(), "=== CERTIFICATE ===")
		require.Contains(t, out.String(), "CN=NBT Device")
		require.Contains(t, out.String(), "[OK] "+trust.ManufacturingCAName)
		require.Zero(t, tag.AuthenticateCalls())
		require.False(t, tag.Connected())
	})

	t.Run("Empty tag", func(t *testing.T) {
		out.Reset()
		tag := &nbttest.Tag{}

		err := e.inspectTag(context.Background(), tag, trust.NewVerifier(pki.Anchors()))
		require.Equal(t, 1, exitCode(err))
		require.Contains(t, out.String(), "NDEF MESSAGE (0 bytes)")
	})

	t.Run("Application missing", func(t *testing.T) {
		out.Reset()
		tag := nbttest.NewTag(pki.Device)
		tag.SelectStatus = 0x6A82

		err := e.inspectTag(context.Background(), tag, trust.NewVerifier(pki.Anchors()))
		require.Equal(t, 1, exitCode(err))
		require.Contains(t, out.String(), "[!!]")
	})
}

func TestOutcomeError(t *testing.T) {
	require.NoError(t, outcomeError(session.Snapshot{Outcome: session.OutcomeVerified}))
	require.Equal(t, 1, exitCode(outcomeError(session.Snapshot{Outcome: session.OutcomeFailed})))
	require.Equal(t, 1, exitCode(outcomeError(session.Snapshot{Outcome: session.OutcomeUnknown})))
}

func TestRunSession_WaitsForDetector(t *testing.T) {
	pki := nbttest.MustPKI()
	var out bytes.Buffer
	e := &env{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:    &out,
	}

	var calls, stopped atomic.Int32
	detect := func(ctx context.Context) ([]nbt.Channel, error) {
		if calls.Add(1) == 1 {
			return []nbt.Channel{nbttest.NewTag(pki.Device)}, nil
		}
		<-ctx.Done()
		stopped.Add(1)
		return nil, ctx.Err()
	}

	s, err := e.runSession(context.Background(), pki.Anchors(), detect)
	require.NoError(t, err)
	require.Equal(t, session.OutcomeVerified, s.Snapshot().Outcome)
	require.Equal(t, int32(1), stopped.Load())
}
