// Package ndef decodes and encodes NFC Data Exchange Format messages and
// extracts the brand protection certificate carried by an NBT tag.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// NDEF RECORD LAYOUT (NFC Forum NDEF 1.0):
//
//	+----+----+----+----+----+-----+
//	| MB | ME | CF | SR | IL | TNF |   header byte
//	+----+----+----+----+----+-----+
//	| TYPE LENGTH                  |   1 byte
//	| PAYLOAD LENGTH               |   1 byte (SR) or 4 bytes big-endian
//	| ID LENGTH                    |   1 byte, only when IL is set
//	| TYPE | ID | PAYLOAD          |
//
// A message is a sequence of records, the first one flagged MB and the last ME.
// Chunked records (CF) are not produced by the NBT and are rejected.

// TNF is the 3-bit Type Name Format of a record.
type TNF byte

const (
	TNFEmpty       TNF = 0x00
	TNFWellKnown   TNF = 0x01
	TNFMedia       TNF = 0x02
	TNFAbsoluteURI TNF = 0x03
	TNFExternal    TNF = 0x04
	TNFUnknown     TNF = 0x05
	TNFUnchanged   TNF = 0x06
	TNFReserved    TNF = 0x07
)

var tnfNames = map[TNF]string{
	TNFEmpty:       "Empty",
	TNFWellKnown:   "WellKnown",
	TNFMedia:       "Media",
	TNFAbsoluteURI: "AbsoluteURI",
	TNFExternal:    "External",
	TNFUnknown:     "Unknown",
	TNFUnchanged:   "Unchanged",
	TNFReserved:    "Reserved",
}

func (t TNF) String() string {
	if name, ok := tnfNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TNF(0x%02X)", byte(t))
}

const (
	flagMB  byte = 0x80
	flagME  byte = 0x40
	flagCF  byte = 0x20
	flagSR  byte = 0x10
	flagIL  byte = 0x08
	tnfMask byte = 0x07

	maxShortPayload = 255
)

var (
	ErrEmptyMessage = errors.New("ndef: empty message")
	ErrChunked      = errors.New("ndef: chunked records not supported")
)

// DecodeError reports a malformed record and the offset it starts at.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ndef: record at offset %d: %s", e.Offset, e.Reason)
}

// Record is a single NDEF record.
type Record struct {
	TNF     TNF
	Type    []byte
	ID      []byte
	Payload []byte
}

// TypeString returns the record type as text.
func (r Record) TypeString() string {
	return string(r.Type)
}

// Message is an ordered list of records.
type Message struct {
	Records []Record
}

// Decode parses a raw NDEF message. Decoding stops after the record flagged ME;
// trailing bytes are ignored.
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &Message{}
	offset := 0
	for offset < len(data) {
		rec, header, n, err := decodeRecord(data[offset:])
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.Offset = offset
			}
			return nil, err
		}

		if len(msg.Records) == 0 && header&flagMB == 0 {
			return nil, &DecodeError{Offset: offset, Reason: "first record lacks MB flag"}
		}
		if len(msg.Records) > 0 && header&flagMB != 0 {
			return nil, &DecodeError{Offset: offset, Reason: "unexpected MB flag"}
		}

		msg.Records = append(msg.Records, rec)
		offset += n

		if header&flagME != 0 {
			return msg, nil
		}
	}

	return nil, &DecodeError{Offset: offset, Reason: "message ended without ME flag"}
}

func decodeRecord(data []byte) (Record, byte, int, error) {
	var rec Record
	if len(data) < 3 {
		return rec, 0, 0, &DecodeError{Reason: "truncated header"}
	}

	header := data[0]
	if header&flagCF != 0 {
		return rec, 0, 0, ErrChunked
	}
	rec.TNF = TNF(header & tnfMask)

	typeLen := int(data[1])
	pos := 2

	var payloadLen int
	if header&flagSR != 0 {
		payloadLen = int(data[pos])
		pos++
	} else {
		if len(data) < pos+4 {
			return rec, 0, 0, &DecodeError{Reason: "truncated payload length"}
		}
		l := binary.BigEndian.Uint32(data[pos:])
		if uint64(l) > uint64(len(data)) {
			return rec, 0, 0, &DecodeError{Reason: fmt.Sprintf("payload length %d exceeds buffer", l)}
		}
		payloadLen = int(l)
		pos += 4
	}

	idLen := 0
	if header&flagIL != 0 {
		if len(data) <= pos {
			return rec, 0, 0, &DecodeError{Reason: "truncated id length"}
		}
		idLen = int(data[pos])
		pos++
	}

	if err := checkTNF(rec.TNF, typeLen, idLen, payloadLen); err != nil {
		return rec, 0, 0, err
	}

	end := pos + typeLen + idLen + payloadLen
	if end > len(data) {
		return rec, 0, 0, &DecodeError{Reason: fmt.Sprintf("record needs %d bytes, %d available", end, len(data))}
	}

	rec.Type = clone(data[pos : pos+typeLen])
	pos += typeLen
	rec.ID = clone(data[pos : pos+idLen])
	pos += idLen
	rec.Payload = clone(data[pos:end])

	return rec, header, end, nil
}

func checkTNF(tnf TNF, typeLen, idLen, payloadLen int) error {
	switch tnf {
	case TNFEmpty:
		if typeLen != 0 || idLen != 0 || payloadLen != 0 {
			return &DecodeError{Reason: "empty record carries data"}
		}
	case TNFUnknown:
		if typeLen != 0 {
			return &DecodeError{Reason: "unknown record carries a type"}
		}
	case TNFUnchanged:
		return ErrChunked
	case TNFReserved:
		return &DecodeError{Reason: "reserved TNF"}
	default:
		if typeLen == 0 {
			return &DecodeError{Reason: fmt.Sprintf("%s record without type", tnf)}
		}
	}
	return nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// Encode serializes the message, setting MB on the first record and ME on the last.
// Short records are used whenever the payload fits in 255 bytes.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	for i, rec := range m.Records {
		if rec.TNF > TNFReserved || rec.TNF == TNFUnchanged {
			return nil, fmt.Errorf("ndef: record %d: cannot encode %s", i, rec.TNF)
		}
		if len(rec.Type) > 0xFF || len(rec.ID) > 0xFF {
			return nil, fmt.Errorf("ndef: record %d: type or id longer than 255 bytes", i)
		}

		header := byte(rec.TNF)
		if i == 0 {
			header |= flagMB
		}
		if i == len(m.Records)-1 {
			header |= flagME
		}
		if len(rec.Payload) <= maxShortPayload {
			header |= flagSR
		}
		if len(rec.ID) > 0 {
			header |= flagIL
		}

		out = append(out, header, byte(len(rec.Type)))
		if header&flagSR != 0 {
			out = append(out, byte(len(rec.Payload)))
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(len(rec.Payload)))
		}
		if header&flagIL != 0 {
			out = append(out, byte(len(rec.ID)))
		}
		out = append(out, rec.Type...)
		out = append(out, rec.ID...)
		out = append(out, rec.Payload...)
	}
	return out, nil
}
