package iso7816

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFCI(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantDFName  []byte
		wantLabel   []byte
		wantProp    []byte
		wantUnknown int
		wantErr     bool
	}{
		{
			name:       "Empty response",
			data:       nil,
			wantDFName: nil,
		},
		{
			name: "FCI wrapper with DF name and label",
			data: Hex(
				"6F 10",
				"84 07 D2760000850101",
				"50 05 4E42542D42", // "NBT-B"
			),
			wantDFName: Hex("D2760000850101"),
			wantLabel:  []byte("NBT-B"),
		},
		{
			name: "FCP template nested in FCI with unknown tag",
			data: Hex(
				"6F 0B",
				"62 09",
				"83 02 E104",
				"C7 03 010203",
			),
			wantUnknown: 1,
		},
		{
			name: "Constructed proprietary template is re-encoded",
			data: Hex(
				"A5 05",
				"88 01 02",
				"80 00",
			),
			wantProp: Hex("88 01 02 80 00"),
		},
		{
			name:    "Truncated TLV",
			data:    Hex("6F 05 84"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fci, err := ParseFCI(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFCI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.wantDFName, fci.DFName); diff != "" {
				t.Errorf("DFName mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantLabel, fci.ApplicationLabel); diff != "" {
				t.Errorf("Label mismatch (-want +got):\n%s", diff)
			}
			if tt.wantProp != nil {
				if diff := cmp.Diff(tt.wantProp, fci.Proprietary); diff != "" {
					t.Errorf("Proprietary mismatch (-want +got):\n%s", diff)
				}
			}
			if len(fci.Unknown) != tt.wantUnknown {
				t.Errorf("len(Unknown) = %d, want %d", len(fci.Unknown), tt.wantUnknown)
			}
		})
	}
}
