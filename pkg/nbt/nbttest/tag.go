// Package nbttest provides a simulated OPTIGA Authenticate NBT tag and
// certificate fixtures for tests and demos.
package nbttest

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
	"github.com/gregLibert/nbt-brand-protection/pkg/ndef"
)

// NDEFApplicationID is the AID of the NFC Forum NDEF application.
var NDEFApplicationID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

// NDEFFileID is the elementary file holding NLEN followed by the NDEF message.
const NDEFFileID = 0xE104

// ErrNotConnected is returned by Transmit before Connect or after Disconnect.
var ErrNotConnected = errors.New("nbttest: tag not connected")

// Tag simulates the NBT at APDU level. It answers SELECT, READ BINARY and
// INTERNAL AUTHENTICATE and records what it was sent. Fields must be set
// before the tag is handed to a session.
type Tag struct {
	// NDEF is the message stored in file E104, without the NLEN prefix.
	NDEF []byte
	// Key signs authentication challenges.
	Key *ecdsa.PrivateKey
	// SelectStatus overrides the answer to SELECT of the NDEF application.
	SelectStatus iso7816.StatusWord
	// AuthStatus overrides the answer to INTERNAL AUTHENTICATE.
	AuthStatus iso7816.StatusWord
	// Sign replaces the signature computation when set.
	Sign func(challenge []byte) []byte
	// ConnectErr fails Connect.
	ConnectErr error
	// TransmitErr fails every Transmit.
	TransmitErr error
	// HoldAuthenticate blocks INTERNAL AUTHENTICATE until closed or the
	// context is done.
	HoldAuthenticate chan struct{}
	// HoldConnect blocks Connect until closed, ignoring the context like a
	// PC/SC connect does.
	HoldConnect chan struct{}
	// ATR is returned by Connect.
	ATR []byte

	mu          sync.Mutex
	connected   bool
	appSelected bool
	fileOpen    bool
	commands    [][]byte
	challenges  [][]byte
	connects    int
	disconnects int
}

// NewTag returns a tag personalized with dev: its certificate stored in an NDEF
// certificate record and its key used for signing.
func NewTag(dev *Device) *Tag {
	msg := &ndef.Message{Records: []ndef.Record{ndef.CertificateRecord(dev.Cert.Raw)}}
	raw, err := msg.Encode()
	if err != nil {
		panic(err)
	}
	return &Tag{NDEF: raw, Key: dev.Key}
}

// Connect opens the simulated link.
func (t *Tag) Connect(ctx context.Context, _ []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.connects++
	hold := t.HoldConnect
	t.mu.Unlock()
	if hold != nil {
		<-hold
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}
	t.connected = true
	t.appSelected = false
	t.fileOpen = false
	if t.ATR != nil {
		return t.ATR, nil
	}
	return iso7816.Hex("3B 8F 80 01 80 4F 0C A0 00 00 03 06 03 00 03 00 00 00 00 68"), nil
}

// Disconnect closes the simulated link. It never fails.
func (t *Tag) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects++
	t.connected = false
	return nil
}

// Transmit processes one command APDU.
func (t *Tag) Transmit(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.commands = append(t.commands, append([]byte(nil), cmd...))
	if t.TransmitErr != nil {
		err := t.TransmitErr
		t.mu.Unlock()
		return nil, err
	}
	if !t.connected {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}

	apdu, ok := parseCommand(cmd)
	if !ok {
		t.mu.Unlock()
		return sw(iso7816.SW_ERR_WRONG_LENGTH), nil
	}

	if apdu.ins == byte(iso7816.INS_INTERNAL_AUTHENTICATE) {
		hold := t.HoldAuthenticate
		t.mu.Unlock()
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.authenticate(apdu), nil
	}

	defer t.mu.Unlock()
	switch iso7816.InsCode(apdu.ins) {
	case iso7816.INS_SELECT:
		return t.selectFile(apdu), nil
	case iso7816.INS_READ_BINARY:
		return t.readBinary(apdu), nil
	default:
		return sw(iso7816.SW_ERR_INS_INVALID), nil
	}
}

func (t *Tag) selectFile(c command) []byte {
	switch c.p1 {
	case 0x04:
		if !bytes.Equal(c.data, NDEFApplicationID) {
			return sw(iso7816.SW_ERR_FILE_NOT_FOUND)
		}
		if t.SelectStatus != 0 && t.SelectStatus != iso7816.SW_NO_ERROR {
			return sw(t.SelectStatus)
		}
		t.appSelected = true
		t.fileOpen = false
		return sw(iso7816.SW_NO_ERROR)
	case 0x00:
		if !t.appSelected || len(c.data) != 2 || binary.BigEndian.Uint16(c.data) != NDEFFileID {
			return sw(iso7816.SW_ERR_FILE_NOT_FOUND)
		}
		t.fileOpen = true
		return sw(iso7816.SW_NO_ERROR)
	default:
		return sw(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}
}

func (t *Tag) readBinary(c command) []byte {
	if !t.fileOpen {
		return sw(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
	file := binary.BigEndian.AppendUint16(nil, uint16(len(t.NDEF)))
	file = append(file, t.NDEF...)

	offset := int(c.p1)<<8 | int(c.p2)
	if offset >= len(file) {
		return sw(iso7816.SW_ERR_WRONG_P1P2)
	}
	end := offset + c.ne
	if end > len(file) {
		return append(append([]byte(nil), file[offset:]...), sw(iso7816.SW_WARN_EOF_REACHED)...)
	}
	return append(append([]byte(nil), file[offset:end]...), sw(iso7816.SW_NO_ERROR)...)
}

func (t *Tag) authenticate(c command) []byte {
	if !t.appSelected {
		return sw(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
	t.challenges = append(t.challenges, append([]byte(nil), c.data...))
	if t.AuthStatus != 0 && t.AuthStatus != iso7816.SW_NO_ERROR {
		return sw(t.AuthStatus)
	}

	var sig []byte
	switch {
	case t.Sign != nil:
		sig = t.Sign(c.data)
	case t.Key != nil:
		digest := sha256.Sum256(c.data)
		s, err := ecdsa.SignASN1(rand.Reader, t.Key, digest[:])
		if err != nil {
			return sw(iso7816.SW_ERR_MEMORY_FAILURE)
		}
		sig = s
	default:
		return sw(iso7816.SW_ERR_REF_DATA_NOT_FOUND)
	}
	return append(sig, sw(iso7816.SW_NO_ERROR)...)
}

// Commands returns a copy of every raw APDU received.
func (t *Tag) Commands() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.commands))
	copy(out, t.commands)
	return out
}

// Challenges returns the challenges received by INTERNAL AUTHENTICATE.
func (t *Tag) Challenges() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.challenges))
	copy(out, t.challenges)
	return out
}

// AuthenticateCalls counts INTERNAL AUTHENTICATE commands that reached the tag logic.
func (t *Tag) AuthenticateCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.challenges)
}

// Connects counts Connect calls.
func (t *Tag) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Disconnects counts Disconnect calls.
func (t *Tag) Disconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
}

// Connected reports whether the link is open.
func (t *Tag) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

type command struct {
	ins, p1, p2 byte
	data        []byte
	ne          int
}

// parseCommand decodes short APDUs, the only form the NBT accepts.
func parseCommand(raw []byte) (command, bool) {
	if len(raw) < 4 {
		return command{}, false
	}
	c := command{ins: raw[1], p1: raw[2], p2: raw[3]}
	body := raw[4:]

	switch {
	case len(body) == 0:
	case len(body) == 1:
		c.ne = leValue(body[0])
	default:
		lc := int(body[0])
		if lc == 0 || len(body) < 1+lc {
			return command{}, false
		}
		c.data = body[1 : 1+lc]
		switch rest := body[1+lc:]; len(rest) {
		case 0:
		case 1:
			c.ne = leValue(rest[0])
		default:
			return command{}, false
		}
	}
	return c, true
}

func leValue(b byte) int {
	if b == 0 {
		return iso7816.MaxShortLe
	}
	return int(b)
}

func sw(s iso7816.StatusWord) []byte {
	return []byte{s.SW1(), s.SW2()}
}
