package iso7816

// INTERNAL AUTHENTICATE (INS '88'):
// The terminal sends a challenge, the tag answers with a value computed from it
// using a key it holds. P1 (algorithm reference) and P2 (key reference) are 00 for
// the default key of the selected application.

// InternalAuthenticate creates an INTERNAL AUTHENTICATE command carrying challenge.
func InternalAuthenticate(cla Class, challenge []byte) *CommandAPDU {
	return NewCommandAPDU(cla, INS_INTERNAL_AUTHENTICATE, 0x00, 0x00, challenge, MaxShortLe)
}
