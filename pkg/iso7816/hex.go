package iso7816

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings.
// Spaces are ignored so APDUs can be written as "00 A4 04 00". It panics on
// invalid input and is meant for fixtures.
func Hex(parts ...string) []byte {
	clean := strings.ReplaceAll(strings.Join(parts, ""), " ", "")

	data, err := hex.DecodeString(clean)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", clean, err))
	}
	return data
}
