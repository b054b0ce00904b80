package iso7816

import (
	"fmt"
	"strings"
)

// SelectResult represents the outcome of a SELECT command execution.
// It wraps the transaction trace to give direct access to the FCI and to a
// human-readable report, hiding the GET RESPONSE round trips.
type SelectResult struct {
	Trace
}

// NewSelectResult creates a SelectResult from a raw transaction trace.
// The trace must start with a SELECT command (INS 0xA4).
func NewSelectResult(t Trace) (*SelectResult, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}

	if t[0].Command.Instruction != INS_SELECT {
		return nil, fmt.Errorf("trace must start with SELECT command (got %02X)", byte(t[0].Command.Instruction))
	}

	return &SelectResult{Trace: t}, nil
}

// FCI parses the File Control Information carried by the final response.
func (r *SelectResult) FCI() (*FileControlInfo, error) {
	if !r.IsSuccess() {
		return nil, fmt.Errorf("selection failed, cannot parse FCI")
	}
	return ParseFCI(r.Data())
}

// Describe generates an ASCII report of the selection.
func (r *SelectResult) Describe() string {
	var sb strings.Builder

	cmd := r.Trace[0].Command

	sb.WriteString("=== SELECT COMMAND REPORT ===\n")
	sb.WriteString(fmt.Sprintf("    + Method:  %02X -> %s\n", cmd.P1, SelectionMethod(cmd.P1)))
	sb.WriteString(fmt.Sprintf("    + Control: %02X -> %s\n", cmd.P2, SelectionControl(cmd.P2&0x0C)))
	if len(cmd.Data) > 0 {
		sb.WriteString(fmt.Sprintf("    + Data:    %X (%q)\n", cmd.Data, safeASCII(cmd.Data)))
	}

	if len(r.Trace) > 1 {
		sb.WriteString(fmt.Sprintf("    + Steps:   %d (auto-handled)\n", len(r.Trace)))
	}

	status := r.Status()
	mark := "[OK]"
	if !status.IsSuccess() {
		mark = "[!!]"
	}
	sb.WriteString(fmt.Sprintf("    + Result:  %s %s\n", mark, status.Verbose()))

	fci, err := r.FCI()
	switch {
	case err != nil && len(r.Data()) > 0:
		sb.WriteString(fmt.Sprintf("    - FCI Parsing Failed: %v", err))
	case err != nil:
		sb.WriteString("    - No Data returned to parse.")
	default:
		sb.WriteString(fci.Describe())
	}

	return sb.String()
}
