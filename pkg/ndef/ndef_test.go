package ndef

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want []Record
	}{
		{
			name: "Empty record",
			data: iso7816.Hex("D0 00 00"),
			want: []Record{{TNF: TNFEmpty}},
		},
		{
			name: "Well-known URI short record",
			data: iso7816.Hex("D1 01 04 55 04 61 2E 62"),
			want: []Record{{TNF: TNFWellKnown, Type: []byte("U"), Payload: iso7816.Hex("04 61 2E 62")}},
		},
		{
			name: "Record with ID",
			data: iso7816.Hex("D9 01 01 02 54 69 64 FF"),
			want: []Record{{TNF: TNFWellKnown, Type: []byte("T"), ID: []byte("id"), Payload: []byte{0xFF}}},
		},
		{
			name: "Long record",
			data: iso7816.Hex("C2 01 00000002 78 AA BB"),
			want: []Record{{TNF: TNFMedia, Type: []byte("x"), Payload: iso7816.Hex("AA BB")}},
		},
		{
			name: "Two records, trailing bytes ignored",
			data: iso7816.Hex(
				"91 01 01 54 01",
				"54 01 01 55 02",
				"00 00",
			),
			want: []Record{
				{TNF: TNFWellKnown, Type: []byte("T"), Payload: []byte{0x01}},
				{TNF: TNFExternal, Type: []byte("U"), Payload: []byte{0x02}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, msg.Records); diff != "" {
				t.Errorf("Records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"Nothing", nil, ErrEmptyMessage},
		{"Chunked", iso7816.Hex("B1 01 01 54 01"), ErrChunked},
		{"Unchanged TNF", iso7816.Hex("D6 00 01 01"), ErrChunked},
		{"Truncated header", iso7816.Hex("D1 01"), nil},
		{"Payload beyond buffer", iso7816.Hex("D1 01 09 54 01"), nil},
		{"Long length beyond buffer", iso7816.Hex("C1 01 FFFFFFFF 54"), nil},
		{"Missing MB", iso7816.Hex("51 01 01 54 01"), nil},
		{"Missing ME", iso7816.Hex("91 01 01 54 01"), nil},
		{"Second MB", iso7816.Hex("91 01 01 54 01 D1 01 01 54 01"), nil},
		{"Well-known without type", iso7816.Hex("D1 00 01 01"), nil},
		{"Reserved TNF", iso7816.Hex("D7 00 00"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("Decode() error = %T %v, want *DecodeError", err, err)
			}
		})
	}
}

func TestDecodeError_Offset(t *testing.T) {
	_, err := Decode(iso7816.Hex("91 01 01 54 01", "51 01 09 54"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Decode() error = %v", err)
	}
	if de.Offset != 5 {
		t.Errorf("Offset = %d, want 5", de.Offset)
	}
}

func TestEncode(t *testing.T) {
	long := bytes.Repeat([]byte{0x42}, 300)
	msg := &Message{Records: []Record{
		{TNF: TNFWellKnown, Type: []byte("T"), ID: []byte("a"), Payload: []byte("hi")},
		{TNF: TNFExternal, Type: []byte("x:y"), Payload: long},
	}}

	raw, err := msg.Encode()
	if err != nil {
		t.Fatal(err)
	}

	wantHead := iso7816.Hex("99 01 02 01 54 61 68 69", "44 03 0000012C")
	if !bytes.HasPrefix(raw, wantHead) {
		t.Errorf("Encode() prefix = %X, want %X", raw[:len(wantHead)], wantHead)
	}

	back, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(msg.Records, back.Records); diff != "" {
		t.Errorf("decoded records mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_Errors(t *testing.T) {
	if _, err := (&Message{}).Encode(); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("empty message error = %v", err)
	}
	bad := &Message{Records: []Record{{TNF: TNFUnchanged, Type: []byte("T")}}}
	if _, err := bad.Encode(); err == nil {
		t.Error("unchanged TNF must not encode")
	}
}

func TestTNF_String(t *testing.T) {
	if got := TNFExternal.String(); got != "External" {
		t.Errorf("String() = %q", got)
	}
	if got := TNF(0x0F).String(); got != "TNF(0x0F)" {
		t.Errorf("String() = %q", got)
	}
}
