package iso7816

import (
	"fmt"
)

// Class Byte (CLA) according to ISO/IEC 7816-4.
//
// The NBT applet only answers to the first interindustry range (00xx xxxx):
//   - Bit 5:    Command Chaining (0=Last/Only, 1=More follow).
//   - Bits 4-3: Secure Messaging indicator (always 00 here, SM is not supported).
//   - Bits 2-1: Logical Channel number (0-3).

// Class is a raw CLA byte restricted to the first interindustry range.
type Class byte

// ClassInterindustry is the plain CLA used for every NBT command (channel 0, no SM, no chaining).
const ClassInterindustry Class = 0x00

// NewClass validates a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return 0, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}
	if isSet(cla, 8) || isSet(cla, 7) {
		return 0, fmt.Errorf("unsupported CLA 0x%02X: only the first interindustry range is handled", cla)
	}
	if bitRange(cla, 4, 3) != 0 {
		return 0, fmt.Errorf("unsupported CLA 0x%02X: secure messaging is not available", cla)
	}
	return Class(cla), nil
}

// OnChannel returns a copy of the class addressing the given logical channel (0-3).
func (c Class) OnChannel(channel uint8) (Class, error) {
	if channel > 3 {
		return c, fmt.Errorf("channel %d out of range (max 3)", channel)
	}
	return Class(byte(c)&^0x03 | channel), nil
}

// Channel returns the logical channel number.
func (c Class) Channel() uint8 {
	return bitRange(byte(c), 2, 1)
}

// IsChained reports whether more commands of a chain follow.
func (c Class) IsChained() bool {
	return isSet(byte(c), 5)
}

// Unchained clears the chaining bit, as required for GET RESPONSE.
func (c Class) Unchained() Class {
	return Class(byte(c) &^ bit(5))
}

// String returns a compact description of the class byte.
func (c Class) String() string {
	chaining := "last"
	if c.IsChained() {
		chaining = "chained"
	}
	return fmt.Sprintf("CLA %02X (channel %d, %s)", byte(c), c.Channel(), chaining)
}
