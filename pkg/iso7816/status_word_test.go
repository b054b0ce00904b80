package iso7816

import (
	"strings"
	"testing"
)

func TestStatusWord_Classification(t *testing.T) {
	tests := []struct {
		sw        StatusWord
		isSuccess bool
		isWarning bool
		isError   bool
	}{
		{SW_NO_ERROR, true, false, false},
		{NewStatusWord(0x61, 0x10), true, false, false}, // Bytes Available
		{SW_WARN_EOF_REACHED, false, true, false},
		{NewStatusWord(0x63, 0xC2), false, true, false}, // Counter
		{SW_ERR_WRONG_LENGTH, false, false, true},
		{SW_ERR_FILE_NOT_FOUND, false, false, true},
		{SW_ERR_SECURITY_STATUS_NOT_SAT, false, false, true},
	}

	for _, tt := range tests {
		if got := tt.sw.IsSuccess(); got != tt.isSuccess {
			t.Errorf("SW %X IsSuccess = %v, want %v", uint16(tt.sw), got, tt.isSuccess)
		}
		if got := tt.sw.IsWarning(); got != tt.isWarning {
			t.Errorf("SW %X IsWarning = %v, want %v", uint16(tt.sw), got, tt.isWarning)
		}
		if got := tt.sw.IsError(); got != tt.isError {
			t.Errorf("SW %X IsError = %v, want %v", uint16(tt.sw), got, tt.isError)
		}
	}
}

func TestStatusWord_Verbose(t *testing.T) {
	tests := []struct {
		sw       StatusWord
		contains string
	}{
		{NewStatusWord(0x63, 0xC3), "counter = 3"},
		{NewStatusWord(0x61, 0x20), "32 bytes available"},
		{NewStatusWord(0x6C, 0x08), "correct Le is 8"},
		{SW_ERR_FILE_NOT_FOUND, "[6A82] SW_ERR_FILE_NOT_FOUND"},
		{NewStatusWord(0x69, 0x99), "[6999] Checking Error: Command not allowed"},
		{NewStatusWord(0x12, 0x34), "Unknown Status"},
	}

	for _, tt := range tests {
		if got := tt.sw.Verbose(); !strings.Contains(got, tt.contains) {
			t.Errorf("SW %04X Verbose() = %q, want it to contain %q", uint16(tt.sw), got, tt.contains)
		}
	}
}

func TestStatusWord_String(t *testing.T) {
	if got := SW_NO_ERROR.String(); got != "SW_NO_ERROR" {
		t.Errorf("String() = %q", got)
	}
	if got := StatusWord(0x1234).String(); got != "StatusWord(0x1234)" {
		t.Errorf("String() = %q", got)
	}
}
