package brandprotect

import (
	"context"
	"io"
	"log/slog"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// VerifyingMessage is reported while the tag is being checked.
const VerifyingMessage = "The product is being verified ..."

// Handler plugs the brand verification into a session. It is safe to share
// between sessions: each call builds its own Engine and challenge.
type Handler struct {
	Verifier *trust.Verifier
	Random   io.Reader
	Logger   *slog.Logger
}

// NewHandler returns a Handler that trusts the given anchors.
func NewHandler(anchors *trust.AnchorSet, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Verifier: trust.NewVerifier(anchors, trust.WithLogger(logger)),
		Logger:   logger,
	}
}

// HandleTag runs one brand verification on a connected, selected tag.
func (h *Handler) HandleTag(ctx context.Context, commands *nbt.CommandSet, progress func(string)) error {
	if progress != nil {
		progress(VerifyingMessage)
	}
	opts := []Option{WithRandom(h.Random)}
	if h.Logger != nil {
		opts = append(opts, WithLogger(h.Logger))
	}
	_, err := NewEngine(commands, h.Verifier, opts...).PerformBrandVerification(ctx)
	return err
}
