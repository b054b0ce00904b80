package iso7816

import (
	"fmt"
)

// READ BINARY COMMAND LOGIC (ISO 7816-4):
// The READ BINARY command (INS 'B0') reads a slice of the currently selected EF.
//
// When bit 8 of P1 is 0, P1-P2 encode a 15-bit offset into the file. Reading through
// an SFI (bit 8 set) is not used by the NBT tag and is not offered here.

// MaxBinaryOffset is the largest offset addressable by P1-P2 (15 bits).
const MaxBinaryOffset = 0x7FFF

// ReadBinary creates a READ BINARY command for length bytes at offset in the current EF.
func ReadBinary(cla Class, offset int, length int) (*CommandAPDU, error) {
	if offset < 0 || offset > MaxBinaryOffset {
		return nil, fmt.Errorf("read offset %d out of range (max %d)", offset, MaxBinaryOffset)
	}
	if length < 1 || length > MaxShortLe {
		return nil, fmt.Errorf("read length %d out of range (1..%d)", length, MaxShortLe)
	}
	return NewCommandAPDU(cla, INS_READ_BINARY, byte(offset>>8), byte(offset), nil, length), nil
}
