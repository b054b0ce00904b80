package trust

import (
	"bytes"
	"crypto/x509"
	"embed"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"io/fs"
	"strings"
	"sync"
)

// Logical resource names of the two trust anchors.
const (
	ManufacturingCAName = "NFCBridgeCLTagDevicesManufacturingCA"
	SampleRootName      = "SampleRootCertificate"
	ResourceExt         = "pem"
)

//go:embed resources/*.pem
var resources embed.FS

// Anchor is a named trusted certificate.
type Anchor struct {
	Name string
	Cert *x509.Certificate
}

// AnchorSet holds the two anchors of the brand protection policy.
// It is immutable once loaded and safe for concurrent use.
type AnchorSet struct {
	Manufacturing *x509.Certificate
	SampleRoot    *x509.Certificate
}

// Ordered returns the anchors in evaluation order: manufacturing CA first.
func (s *AnchorSet) Ordered() []Anchor {
	return []Anchor{
		{Name: ManufacturingCAName, Cert: s.Manufacturing},
		{Name: SampleRootName, Cert: s.SampleRoot},
	}
}

// LoadAnchors reads "<name>.pem" for both anchors from the root of fsys.
func LoadAnchors(fsys fs.FS) (*AnchorSet, error) {
	mfg, err := loadResource(fsys, ManufacturingCAName)
	if err != nil {
		return nil, err
	}
	root, err := loadResource(fsys, SampleRootName)
	if err != nil {
		return nil, err
	}
	return &AnchorSet{Manufacturing: mfg, SampleRoot: root}, nil
}

func loadResource(fsys fs.FS, name string) (*x509.Certificate, error) {
	data, err := fs.ReadFile(fsys, name+"."+ResourceExt)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ResourceNotFoundError{Name: name, Err: err}
		}
		return nil, &CertificateError{Reason: "reading " + name, Err: err}
	}
	cert, err := ParsePEM(data)
	if err != nil {
		return nil, &CertificateError{Reason: "parsing " + name, Err: err}
	}
	return cert, nil
}

var (
	defaultOnce    sync.Once
	defaultAnchors *AnchorSet
	defaultErr     error
)

// DefaultAnchors returns the anchors bundled with the binary. They are parsed
// on first use and cached for the process lifetime.
func DefaultAnchors() (*AnchorSet, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(resources, "resources")
		if err != nil {
			defaultErr = err
			return
		}
		defaultAnchors, defaultErr = LoadAnchors(sub)
	})
	return defaultAnchors, defaultErr
}

// ParsePEM decodes a single PEM armored certificate. Armor lines and
// whitespace are stripped before the body is base64 decoded.
func ParsePEM(data []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, &CertificateError{Reason: "unexpected PEM block " + block.Type}
		}
		return parseDER(block.Bytes)
	}

	// Tolerate bodies whose armor pem.Decode rejects (missing END line, stray headers).
	var body strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		body.WriteString(line)
	}
	if body.Len() == 0 {
		return nil, &CertificateError{Reason: "no PEM data"}
	}
	der, err := base64.StdEncoding.DecodeString(body.String())
	if err != nil {
		return nil, &CertificateError{Reason: "base64 decoding", Err: err}
	}
	return parseDER(der)
}

// ParseCertificate accepts either a PEM or a DER encoded certificate.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return ParsePEM(data)
	}
	return parseDER(data)
}

func parseDER(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, &CertificateError{Reason: "X.509 parsing", Err: err}
	}
	return cert, nil
}
