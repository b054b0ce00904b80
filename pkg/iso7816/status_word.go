package iso7816

import (
	"fmt"
)

// Dynamic Status Word Logic:
//
// While most Status Words (SW) are static 2-byte values (e.g., 0x9000), ISO 7816-4 defines
// ranges where the value carries contextual information:
//
// 1. '61XX' (SW1=0x61): Process Completed, Response Available.
//    XX indicates the number of extra bytes available for retrieval (GET RESPONSE).
//
// 2. '6CXX' (SW1=0x6C): Wrong Length.
//    XX indicates the correct expected length (Le) for the command.
//
// 3. '63CX' (Warning): Counter Management.
//    The lower nibble of SW2 carries a counter value.

// StatusWord represents the two-byte status response (SW1-SW2) returned by the tag.
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess returns true if the command was processed successfully (9000) or
// if data is available (61XX).
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning returns true if the status indicates a warning (62XX or 63XX).
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true if the status indicates an execution or checking error (64XX to 6FXX).
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

// IsCounter checks if the status carries a counter in the lower nibble (63CX).
func (sw StatusWord) IsCounter() bool {
	return sw.SW1() == 0x63 && bitRange(sw.SW2(), 8, 5) == 0x0C
}

// String returns the symbolic name of a known status word.
func (sw StatusWord) String() string {
	if name, ok := swNames[sw]; ok {
		return name
	}
	return fmt.Sprintf("StatusWord(0x%04X)", uint16(sw))
}

// Verbose returns a human-readable description of the status word.
func (sw StatusWord) Verbose() string {
	sw1 := sw.SW1()
	sw2 := sw.SW2()

	switch {
	case sw1 == 0x61:
		return fmt.Sprintf("Process completed, %d bytes available", sw2)
	case sw1 == 0x6C:
		return fmt.Sprintf("Wrong length, correct Le is %d", sw2)
	case sw.IsCounter():
		return fmt.Sprintf("Warning: State changed, counter = %d", bitRange(sw2, 4, 1))
	}

	if name, ok := swNames[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), name)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.category())
}

// category provides a fallback description based on SW1.
func (sw StatusWord) category() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	default:
		return "Unknown Status"
	}
}

// Status Word codes from ISO/IEC 7816-4 an NBT tag is known to return.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_EOF_REACHED StatusWord = 0x6282

	SW_ERR_MEMORY_FAILURE          StatusWord = 0x6581
	SW_ERR_WRONG_LENGTH            StatusWord = 0x6700
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985
	SW_ERR_INCORRECT_PARAMS_DATA   StatusWord = 0x6A80
	SW_ERR_FUNC_NOT_SUPPORTED      StatusWord = 0x6A81
	SW_ERR_FILE_NOT_FOUND          StatusWord = 0x6A82
	SW_ERR_INCORRECT_PARAMS_P1P2   StatusWord = 0x6A86
	SW_ERR_REF_DATA_NOT_FOUND      StatusWord = 0x6A88
	SW_ERR_WRONG_P1P2              StatusWord = 0x6B00
	SW_ERR_INS_INVALID             StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED       StatusWord = 0x6E00
	SW_ERR_UNKNOWN                 StatusWord = 0x6F00
)

var swNames = map[StatusWord]string{
	SW_NO_ERROR:                    "SW_NO_ERROR",
	SW_WARN_EOF_REACHED:            "SW_WARN_EOF_REACHED",
	SW_ERR_MEMORY_FAILURE:          "SW_ERR_MEMORY_FAILURE",
	SW_ERR_WRONG_LENGTH:            "SW_ERR_WRONG_LENGTH",
	SW_ERR_SECURITY_STATUS_NOT_SAT: "SW_ERR_SECURITY_STATUS_NOT_SAT",
	SW_ERR_COND_OF_USE_NOT_SAT:     "SW_ERR_COND_OF_USE_NOT_SAT",
	SW_ERR_INCORRECT_PARAMS_DATA:   "SW_ERR_INCORRECT_PARAMS_DATA",
	SW_ERR_FUNC_NOT_SUPPORTED:      "SW_ERR_FUNC_NOT_SUPPORTED",
	SW_ERR_FILE_NOT_FOUND:          "SW_ERR_FILE_NOT_FOUND",
	SW_ERR_INCORRECT_PARAMS_P1P2:   "SW_ERR_INCORRECT_PARAMS_P1P2",
	SW_ERR_REF_DATA_NOT_FOUND:      "SW_ERR_REF_DATA_NOT_FOUND",
	SW_ERR_WRONG_P1P2:              "SW_ERR_WRONG_P1P2",
	SW_ERR_INS_INVALID:             "SW_ERR_INS_INVALID",
	SW_ERR_CLA_NOT_SUPPORTED:       "SW_ERR_CLA_NOT_SUPPORTED",
	SW_ERR_UNKNOWN:                 "SW_ERR_UNKNOWN",
}
