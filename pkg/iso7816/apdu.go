package iso7816

import (
	"bytes"
	"fmt"
)

// COMMAND APDU (C-APDU):
// A mandatory 4-byte header (CLA INS P1 P2) followed by an optional body (Lc, Data, Le).
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// Short length fields are used unless Lc > 255 or Le > 256, which switches the whole
// command to extended length encoding.
//
// RESPONSE APDU (R-APDU):
// An optional data field followed by the mandatory SW1 SW2 trailer.

// APDU length limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode.
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) in Short Length mode.
	// In Short mode, 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the limit for Lc in Extended mode (16-bit unsigned).
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne encodable in Extended Length mode.
	// In Extended mode, 0x0000 encodes 65536.
	MaxExtendedLe = 65536
)

// CommandAPDU represents a command sent to the tag.
type CommandAPDU struct {
	Class       Class
	Instruction InsCode
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins InsCode, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
func (c *CommandAPDU) Bytes() ([]byte, error) {
	if !c.Instruction.Valid() {
		return nil, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(c.Instruction))
	}

	nc := len(c.Data)
	ne := c.Ne

	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("command data too long: %d bytes", nc)
	}
	if ne < 0 || ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length out of range: %d", ne)
	}

	buf := new(bytes.Buffer)
	buf.Write([]byte{byte(c.Class), byte(c.Instruction), c.P1, c.P2})

	extended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if extended {
			buf.Write([]byte{0x00, byte(nc >> 8), byte(nc)})
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !extended:
			// 256 wraps to 0x00
			buf.WriteByte(byte(ne))
		default:
			// Case 2 extended needs the 00 marker that Lc would otherwise provide.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			// 65536 wraps to 0x0000
			buf.Write([]byte{byte(ne >> 8), byte(ne)})
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | CLA: %02X, P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction, byte(c.Class), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the tag (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the tag into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	n := len(raw) - 2
	data := make([]byte, n)
	copy(data, raw[:n])

	return &ResponseAPDU{
		Data:   data,
		Status: NewStatusWord(raw[n], raw[n+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
