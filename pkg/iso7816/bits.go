package iso7816

// bit returns a byte with only the n-th bit set (1 to 8).
func bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// isSet checks if the n-th bit is set (1 to 8).
func isSet(b byte, n uint) bool {
	return b&bit(n) != 0
}

// bitRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: bitRange(0b00001100, 4, 3) returns 3 (0b11)
func bitRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}
