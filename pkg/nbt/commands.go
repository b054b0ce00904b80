// Package nbt implements the command set of the OPTIGA Authenticate NBT in
// its brand protection configuration.
package nbt

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
)

// COMMAND SET LOGIC:
//
// The NBT exposes the NFC Forum NDEF application. The brand protection flow uses:
//
// 1. SELECT by DF name D2760000850101 (the NDEF application).
// 2. SELECT EF E104, then READ BINARY: the first two bytes (NLEN) give the length
//    of the NDEF message that follows.
// 3. INTERNAL AUTHENTICATE with an 8 byte challenge. The tag answers with an ECDSA
//    signature over the challenge, DER encoded.
//
// Status words are judged on the last transaction of each trace, so GET RESPONSE
// and Le corrections stay invisible to callers. Nothing is retried.

// ApplicationID is the AID selected before any other command.
var ApplicationID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

// NDEFFileID is the elementary file holding the NDEF message.
const NDEFFileID uint16 = 0xE104

// ChallengeLength is the size of the INTERNAL AUTHENTICATE challenge.
const ChallengeLength = 8

// maxReadChunk keeps READ BINARY within a short Le.
const maxReadChunk = 0xFF

// Channel is the byte-level link to a tag.
type Channel interface {
	iso7816.Transmitter
	Connect(ctx context.Context, initData []byte) ([]byte, error)
	Disconnect() error
}

// CommandSet issues the NBT operations over a Channel. It is owned by a single
// session and is not safe for concurrent use.
type CommandSet struct {
	channel Channel
	client  *iso7816.Client
	cla     iso7816.Class
	logger  *slog.Logger
}

// NewCommandSet creates a CommandSet. A nil logger falls back to slog.Default().
func NewCommandSet(ch Channel, logger *slog.Logger) *CommandSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSet{
		channel: ch,
		client:  iso7816.NewClient(ch, logger),
		cla:     iso7816.ClassInterindustry,
		logger:  logger,
	}
}

// Connect opens the channel and returns the bytes it reports (ATR or handle).
func (cs *CommandSet) Connect(ctx context.Context, initData []byte) ([]byte, error) {
	handle, err := cs.channel.Connect(ctx, initData)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	cs.logger.DebugContext(ctx, "tag connected", "handle", fmt.Sprintf("%X", handle))
	return handle, nil
}

// SelectApplication selects the NDEF application. A rejection is returned as a
// non-success Response, not as an error.
func (cs *CommandSet) SelectApplication(ctx context.Context) (*Response, error) {
	trace, err := cs.send(ctx, "select application", iso7816.SelectByAID(cs.cla, ApplicationID))
	if err != nil {
		return nil, err
	}
	resp := newResponse("select application", trace)

	if resp.IsSuccess() && len(resp.Data) > 0 {
		if res, err := iso7816.NewSelectResult(trace); err == nil {
			if fci, err := res.FCI(); err == nil {
				cs.logger.DebugContext(ctx, "application selected", "fci", fci.Describe())
			}
		}
	}
	return resp, nil
}

// ReadNDEFMessage reads the NDEF file. The returned Data is the message without
// its NLEN prefix. Any rejected step yields a ProtocolError.
func (cs *CommandSet) ReadNDEFMessage(ctx context.Context) (*Response, error) {
	const name = "read NDEF message"

	trace, err := cs.send(ctx, name, iso7816.SelectFile(cs.cla, NDEFFileID))
	if err != nil {
		return nil, err
	}
	if _, err := newResponse("select NDEF file", trace).CheckOK(); err != nil {
		return nil, err
	}

	full := trace
	head, steps, err := cs.readBinary(ctx, name, 0, 2)
	if err != nil {
		return nil, err
	}
	full = append(full, steps...)
	if len(head) < 2 {
		return nil, &ProtocolError{Command: name + " (NLEN)", Status: full.Status()}
	}
	nlen := int(binary.BigEndian.Uint16(head))

	message := make([]byte, 0, nlen)
	for len(message) < nlen {
		n := min(nlen-len(message), maxReadChunk)
		chunk, steps, err := cs.readBinary(ctx, name, 2+len(message), n)
		if err != nil {
			return nil, err
		}
		full = append(full, steps...)
		if len(chunk) == 0 {
			return nil, &ProtocolError{Command: name, Status: full.Status()}
		}
		message = append(message, chunk...)
	}
	if len(message) > nlen {
		message = message[:nlen]
	}

	return &Response{Command: name, Data: message, Status: iso7816.SW_NO_ERROR, Trace: full}, nil
}

func (cs *CommandSet) readBinary(ctx context.Context, name string, offset, length int) ([]byte, iso7816.Trace, error) {
	cmd, err := iso7816.ReadBinary(cs.cla, offset, length)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	trace, err := cs.send(ctx, name, cmd)
	if err != nil {
		return nil, nil, err
	}
	if _, err := newResponse(name, trace).CheckOK(); err != nil {
		return nil, nil, err
	}
	return trace.Data(), trace, nil
}

// AuthenticateTag sends the challenge and returns the tag signature in Data.
func (cs *CommandSet) AuthenticateTag(ctx context.Context, challenge []byte) (*Response, error) {
	const name = "authenticate tag"
	if len(challenge) != ChallengeLength {
		return nil, fmt.Errorf("%s: challenge must be %d bytes, got %d", name, ChallengeLength, len(challenge))
	}

	trace, err := cs.send(ctx, name, iso7816.InternalAuthenticate(cs.cla, challenge))
	if err != nil {
		return nil, err
	}
	return newResponse(name, trace).CheckOK()
}

// Disconnect closes the channel. Failures are logged and swallowed.
func (cs *CommandSet) Disconnect() {
	if err := cs.channel.Disconnect(); err != nil {
		cs.logger.Warn("tag disconnect failed", "err", err)
	}
}

func (cs *CommandSet) send(ctx context.Context, name string, cmd *iso7816.CommandAPDU) (iso7816.Trace, error) {
	trace, err := cs.client.Send(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Op: name, Err: err}
	}
	return trace, nil
}
