package ndef

import (
	"crypto/x509"
)

// CertificateRecordType is the external record type under which the NBT stores
// its X.509 device certificate.
const CertificateRecordType = "infineon technologies:infineon.com:nfc-bridge-tag.x509"

const notPersonalizedMessage = "NDEF file Empty - Not personalized for brand protection"

// MalformedTagDataError means the tag content holds no usable certificate.
type MalformedTagDataError struct {
	Err error
}

func (e *MalformedTagDataError) Error() string {
	if e.Err != nil {
		return notPersonalizedMessage + ": " + e.Err.Error()
	}
	return notPersonalizedMessage
}

func (e *MalformedTagDataError) Unwrap() error { return e.Err }

// ParseCertificate decodes raw NDEF bytes and returns the certificate of the first
// record typed CertificateRecordType whose payload parses as DER. Records with a
// different type, or with the right type but an unparsable payload, are skipped.
func ParseCertificate(raw []byte) (*x509.Certificate, error) {
	msg, err := Decode(raw)
	if err != nil {
		return nil, &MalformedTagDataError{Err: err}
	}
	return msg.Certificate()
}

// Certificate scans the records of an already decoded message.
func (m *Message) Certificate() (*x509.Certificate, error) {
	for _, rec := range m.Records {
		if rec.TypeString() != CertificateRecordType || len(rec.Payload) == 0 {
			continue
		}
		cert, err := x509.ParseCertificate(rec.Payload)
		if err != nil {
			continue
		}
		return cert, nil
	}
	return nil, &MalformedTagDataError{}
}

// CertificateRecord wraps a DER certificate into the record the NBT expects.
func CertificateRecord(der []byte) Record {
	return Record{
		TNF:     TNFExternal,
		Type:    []byte(CertificateRecordType),
		Payload: der,
	}
}
