// Package brandprotect runs the brand protection protocol against an NBT:
// the tag certificate is checked against the trust anchors, then the tag
// proves possession of the matching key by signing a random challenge.
package brandprotect

import (
	"context"
	"crypto/x509"
	"io"
	"log/slog"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/ndef"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// VERIFICATION SEQUENCE:
//
// 1. READ the NDEF message.
// 2. EXTRACT the certificate record.
// 3. EVALUATE the certificate: manufacturing CA first, sample root second.
// 4. DRAW a fresh 8 byte challenge.
// 5. AUTHENTICATE: the tag signs the challenge.
// 6. CHECK the signature with the certificate public key.
//
// Each step gates the next one. No challenge leaves the host before the
// certificate is trusted.

// Commands is the part of the NBT command set the engine drives.
type Commands interface {
	ReadNDEFMessage(ctx context.Context) (*nbt.Response, error)
	AuthenticateTag(ctx context.Context, challenge []byte) (*nbt.Response, error)
}

// Result describes a verified tag.
type Result struct {
	Certificate *x509.Certificate
	Anchor      string
}

// Engine performs one brand verification per call.
type Engine struct {
	commands Commands
	verifier *trust.Verifier
	random   io.Reader
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRandom sets the challenge source. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.random = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine over commands, trusting what verifier trusts.
func NewEngine(commands Commands, verifier *trust.Verifier, opts ...Option) *Engine {
	e := &Engine{
		commands: commands,
		verifier: verifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PerformBrandVerification runs the full sequence once. A nil error means the
// tag is genuine. Errors keep their package type (nbt, ndef, trust) so the
// caller can classify them.
func (e *Engine) PerformBrandVerification(ctx context.Context) (*Result, error) {
	resp, err := e.commands.ReadNDEFMessage(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := resp.CheckOK(); err != nil {
		return nil, err
	}

	cert, err := ndef.ParseCertificate(resp.Data)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "tag certificate",
		"subject", cert.Subject.String(),
		"issuer", cert.Issuer.String(),
		"serial", cert.SerialNumber.Text(16))

	anchor, err := e.verifier.Verify(cert)
	if err != nil {
		e.logger.DebugContext(ctx, "certificate rejected by every anchor", "subject", cert.Subject.CommonName, "err", err)
		return nil, err
	}

	challenge, err := NewChallenge(e.random)
	if err != nil {
		return nil, err
	}

	resp, err = e.commands.AuthenticateTag(ctx, challenge.Bytes())
	if err != nil {
		return nil, err
	}
	if _, err := resp.CheckOK(); err != nil {
		return nil, err
	}

	pub, err := trust.PublicKey(cert)
	if err != nil {
		return nil, err
	}
	if err := trust.VerifySignature(pub, challenge.Bytes(), resp.Data); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "tag verified", "anchor", anchor.Name, "subject", cert.Subject.CommonName)
	return &Result{Certificate: cert, Anchor: anchor.Name}, nil
}
