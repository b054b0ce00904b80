package ndef_test

import (
	"errors"
	"testing"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
	"github.com/gregLibert/nbt-brand-protection/pkg/nbt/nbttest"
	"github.com/gregLibert/nbt-brand-protection/pkg/ndef"
)

func encode(t *testing.T, records ...ndef.Record) []byte {
	t.Helper()
	raw, err := (&ndef.Message{Records: records}).Encode()
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestParseCertificate(t *testing.T) {
	pki := nbttest.MustPKI()
	der := pki.Device.Cert.Raw
	other, err := pki.SampleRoot.Issue("Other Device")
	if err != nil {
		t.Fatal(err)
	}

	uri := ndef.Record{TNF: ndef.TNFWellKnown, Type: []byte("U"), Payload: iso7816.Hex("04 696E66696E656F6E2E636F6D")}
	text := ndef.Record{TNF: ndef.TNFWellKnown, Type: []byte("T"), Payload: []byte("\x02enNBT")}
	wrongType := ndef.Record{TNF: ndef.TNFExternal, Type: []byte("infineon technologies:infineon.com:other"), Payload: der}
	garbage := ndef.Record{TNF: ndef.TNFExternal, Type: []byte(ndef.CertificateRecordType), Payload: []byte{0x30, 0x03, 0x01}}

	tests := []struct {
		name    string
		records []ndef.Record
	}{
		{"Only record", []ndef.Record{ndef.CertificateRecord(der)}},
		{"First of three", []ndef.Record{ndef.CertificateRecord(der), uri, text}},
		{"Middle", []ndef.Record{uri, ndef.CertificateRecord(der), text}},
		{"Last", []ndef.Record{uri, text, ndef.CertificateRecord(der)}},
		{"After a lookalike type", []ndef.Record{wrongType, ndef.CertificateRecord(der)}},
		{"After an unparsable payload", []ndef.Record{garbage, ndef.CertificateRecord(der)}},
		{"First match wins", []ndef.Record{ndef.CertificateRecord(der), ndef.CertificateRecord(other.Cert.Raw)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ndef.ParseCertificate(encode(t, tt.records...))
			if err != nil {
				t.Fatalf("ParseCertificate() error = %v", err)
			}
			if !cert.Equal(pki.Device.Cert) {
				t.Errorf("got certificate %q, want %q", cert.Subject.CommonName, pki.Device.Cert.Subject.CommonName)
			}
		})
	}
}

func TestParseCertificate_NoCertificate(t *testing.T) {
	pki := nbttest.MustPKI()
	uri := ndef.Record{TNF: ndef.TNFWellKnown, Type: []byte("U"), Payload: []byte{0x04, 'x'}}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"Empty file", nil},
		{"Empty NDEF record", iso7816.Hex("D0 00 00")},
		{"Unrelated records", encode(t, uri, uri)},
		{"Certificate under another type", encode(t, ndef.Record{TNF: ndef.TNFExternal, Type: []byte("x509"), Payload: pki.Device.Cert.Raw})},
		{"Empty certificate payload", encode(t, ndef.CertificateRecord(nil))},
		{"Corrupt certificate", encode(t, ndef.CertificateRecord(pki.Device.Cert.Raw[:40]))},
		{"Malformed NDEF", iso7816.Hex("D1 01 09 54")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := ndef.ParseCertificate(tt.raw)
			if cert != nil {
				t.Fatal("no certificate may be returned")
			}
			var merr *ndef.MalformedTagDataError
			if !errors.As(err, &merr) {
				t.Fatalf("ParseCertificate() error = %v, want MalformedTagDataError", err)
			}
		})
	}
}

func TestMalformedTagDataError_Message(t *testing.T) {
	err := &ndef.MalformedTagDataError{}
	if got, want := err.Error(), "NDEF file Empty - Not personalized for brand protection"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
