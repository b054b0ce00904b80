package iso7816

import (
	"fmt"
)

// InsCode is a typed representation of the instruction byte (INS).
//
// Values where the upper nibble is '6' or '9' are reserved for status words
// by ISO/IEC 7816-3 and are rejected by Valid.
type InsCode byte

// Instruction codes used by the NBT command set.
const (
	INS_INTERNAL_AUTHENTICATE InsCode = 0x88
	INS_SELECT                InsCode = 0xA4
	INS_READ_BINARY           InsCode = 0xB0
	INS_GET_RESPONSE          InsCode = 0xC0
	INS_UPDATE_BINARY         InsCode = 0xD6
)

var insNames = map[InsCode]string{
	INS_INTERNAL_AUTHENTICATE: "INTERNAL AUTHENTICATE",
	INS_SELECT:                "SELECT",
	INS_READ_BINARY:           "READ BINARY",
	INS_GET_RESPONSE:          "GET RESPONSE",
	INS_UPDATE_BINARY:         "UPDATE BINARY",
}

// Valid reports whether the instruction byte may be sent to a card.
func (i InsCode) Valid() bool {
	high := byte(i) & 0xF0
	return high != 0x60 && high != 0x90
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("INS(0x%02X)", byte(i))
}
