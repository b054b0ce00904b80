package iso7816

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSelectCommands(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *CommandAPDU
		expected []byte
	}{
		{
			name: "Select NDEF application by AID",
			cmd:  SelectByAID(ClassInterindustry, Hex("D2760000850101")),
			expected: Hex(
				"00 A4 04 00",          // Header: CLA=00, INS=A4, P1=04 (AID), P2=00
				"07",                   // Lc=7
				"D2 76 00 00 85 01 01", // AID
				// NO Le "00" here due to T=0 compatibility
			),
		},
		{
			name: "Select NDEF file",
			cmd:  SelectFile(ClassInterindustry, 0xE104),
			expected: Hex(
				"00 A4 00 0C", // Header: P1=00 (File ID), P2=0C (No data)
				"02",          // Lc=2
				"E1 04",       // File ID
			),
		},
		{
			name: "Select without data asks for FCI",
			cmd:  NewSelectCommand(ClassInterindustry, SelectByFileID, ReturnFCI, nil),
			expected: Hex(
				"00 A4 00 00",
				"00", // Le=256
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Failed to encode bytes: %v", err)
			}

			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Mismatch:\nExpected: %s\nGot:      %s",
					hex.EncodeToString(tt.expected),
					hex.EncodeToString(got))
			}
		})
	}
}

func TestReadBinary(t *testing.T) {
	cmd, err := ReadBinary(ClassInterindustry, 0x0102, 0xFF)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := cmd.Bytes()
	if want := Hex("00 B0 01 02 FF"); !bytes.Equal(got, want) {
		t.Errorf("ReadBinary = %X, want %X", got, want)
	}

	if _, err := ReadBinary(ClassInterindustry, MaxBinaryOffset+1, 1); err == nil {
		t.Error("offset beyond 15 bits must be rejected")
	}
	if _, err := ReadBinary(ClassInterindustry, 0, 0); err == nil {
		t.Error("zero length must be rejected")
	}
}

func TestSelectResult(t *testing.T) {
	cmd := SelectByAID(ClassInterindustry, Hex("D2760000850101"))

	t.Run("Rejects non-select trace", func(t *testing.T) {
		rb, _ := ReadBinary(ClassInterindustry, 0, 2)
		_, err := NewSelectResult(Trace{{Command: rb, Response: &ResponseAPDU{Status: SW_NO_ERROR}}})
		if err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("Rejects empty trace", func(t *testing.T) {
		if _, err := NewSelectResult(nil); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("Describes FCI after GET RESPONSE", func(t *testing.T) {
		getResp := NewCommandAPDU(ClassInterindustry, INS_GET_RESPONSE, 0, 0, nil, 11)
		res, err := NewSelectResult(Trace{
			{Command: cmd, Response: &ResponseAPDU{Status: NewStatusWord(0x61, 0x0B)}},
			{Command: getResp, Response: &ResponseAPDU{
				Data:   Hex("6F 09 84 07 D2760000850101"),
				Status: SW_NO_ERROR,
			}},
		})
		if err != nil {
			t.Fatal(err)
		}

		report := res.Describe()
		for _, want := range []string{"Steps:   2", "[OK]", "DFName (84): D2760000850101"} {
			if !strings.Contains(report, want) {
				t.Errorf("report missing %q:\n%s", want, report)
			}
		}
	})

	t.Run("Describes rejection", func(t *testing.T) {
		res, err := NewSelectResult(Trace{
			{Command: cmd, Response: &ResponseAPDU{Status: SW_ERR_FILE_NOT_FOUND}},
		})
		if err != nil {
			t.Fatal(err)
		}
		report := res.Describe()
		if !strings.Contains(report, "[!!]") || !strings.Contains(report, "No Data returned") {
			t.Errorf("unexpected report:\n%s", report)
		}
	})
}
