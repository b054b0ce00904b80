package iso7816

import (
	"fmt"
)

// SELECT COMMAND LOGIC (ISO 7816-4):
// The SELECT command (INS 'A4') opens an application or a file.
//
// P1 (Selection Method): how the target is named (File ID, DF name / AID, path...).
// P2 (Selection Control):
// - Bits 4-3: Response Type (FCI, FCP, FMD, or No Data).
// - Bits 2-1: Occurrence (First, Last, Next, Previous).

// SelectionMethod defines how the file is targeted (P1).
type SelectionMethod byte

const (
	SelectByFileID SelectionMethod = 0x00
	SelectByDFName SelectionMethod = 0x04 // Select by AID
)

func (s SelectionMethod) String() string {
	switch s {
	case SelectByFileID:
		return "Select by File ID"
	case SelectByDFName:
		return "Select by DF Name (AID)"
	default:
		return fmt.Sprintf("Unknown Method (0x%02X)", byte(s))
	}
}

// SelectionControl defines what data to return (Bits 3-4 of P2).
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0b0000_00_00
	ReturnFCP    SelectionControl = 0b0000_01_00
	ReturnFMD    SelectionControl = 0b0000_10_00
	ReturnNoData SelectionControl = 0b0000_11_00
)

func (s SelectionControl) String() string {
	switch s {
	case ReturnFCI:
		return "Return FCI"
	case ReturnFCP:
		return "Return FCP"
	case ReturnFMD:
		return "Return FMD"
	case ReturnNoData:
		return "No Response Data"
	default:
		return "Unknown Control"
	}
}

// NewSelectCommand creates a SELECT command for the first or only occurrence.
func NewSelectCommand(cla Class, method SelectionMethod, ctrl SelectionControl, data []byte) *CommandAPDU {
	// T=0 cannot carry Lc and Le together: a data-carrying SELECT is sent as
	// case 3 and the tag answers 61XX, which the Client turns into GET RESPONSE.
	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	return NewCommandAPDU(cla, INS_SELECT, byte(method), byte(ctrl), data, ne)
}

// SelectByAID selects an application by its name (AID) and asks for its FCI.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, ReturnFCI, aid)
}

// SelectFile selects an elementary file by its 16-bit identifier without response data.
func SelectFile(cla Class, fileID uint16) *CommandAPDU {
	return NewSelectCommand(cla, SelectByFileID, ReturnNoData, []byte{byte(fileID >> 8), byte(fileID)})
}
