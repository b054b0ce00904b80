package brandprotect

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/gregLibert/nbt-brand-protection/pkg/nbt"
)

// ChallengeLength is the number of random bytes sent to the tag.
const ChallengeLength = nbt.ChallengeLength

// Challenge is the random data the tag must sign. One is drawn per attempt.
type Challenge [ChallengeLength]byte

// NewChallenge reads a fresh challenge from r, or from crypto/rand when r is nil.
func NewChallenge(r io.Reader) (Challenge, error) {
	if r == nil {
		r = rand.Reader
	}
	var c Challenge
	if _, err := io.ReadFull(r, c[:]); err != nil {
		return Challenge{}, fmt.Errorf("challenge generation: %w", err)
	}
	return c, nil
}

// Bytes returns the challenge as a slice.
func (c Challenge) Bytes() []byte {
	return c[:]
}
