package session

import (
	"context"
	"errors"
	"strings"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
	"github.com/gregLibert/nbt-brand-protection/pkg/ndef"
	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// Messages is the user facing text of a session.
type Messages struct {
	Start               string
	NotPersonalized     string
	Verified            string
	NotVerified         string
	TimedOut            string
	RetrySuffix         string
	ResourceUnavailable string
	NFCNotReady         string
}

// DefaultMessages returns the English message table.
func DefaultMessages() Messages {
	return Messages{
		Start:               "Please tap your device to the OPTIGA™ Authenticate NBT to verify its authenticity!",
		NotPersonalized:     "Please make sure the OPTIGA™ Authenticate NBT is correctly personalized",
		Verified:            "Product successfully verified",
		NotVerified:         "Could not be verified!",
		TimedOut:            "The tag did not answer in time",
		RetrySuffix:         ", please try again",
		ResourceUnavailable: "System resource unavailable",
		NFCNotReady:         "NFC interface not ready",
	}
}

// ForError maps an attempt failure to the single message shown to the user.
// Tag content and cryptographic failures collapse into NotVerified so that no
// detail of the failing step leaks. Link and infrastructure failures keep their
// own text and invite a retry.
func (m Messages) ForError(err error) string {
	if isVerificationFailure(err) {
		return m.NotVerified
	}

	var text string
	var terr *nbt.TransportError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		text = m.TimedOut
	case errors.As(err, &terr):
		text = rootCause(terr.Err).Error()
	default:
		text = err.Error()
	}
	if strings.Contains(text, m.ResourceUnavailable) {
		text = m.NFCNotReady
	}
	return text + m.RetrySuffix
}

func isVerificationFailure(err error) bool {
	var perr *nbt.ProtocolError
	var merr *ndef.MalformedTagDataError
	return errors.As(err, &perr) || errors.As(err, &merr) || trust.IsVerificationFailure(err)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
