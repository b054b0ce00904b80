package nbttest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/gregLibert/nbt-brand-protection/pkg/trust"
)

// Authority is a self-signed ECDSA P-256 certificate authority.
type Authority struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// Device is a tag identity: its certificate and the private key kept in the tag.
type Device struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// IssueOption tweaks a certificate before it is signed.
type IssueOption func(*x509.Certificate)

// ValidBetween sets the validity window.
func ValidBetween(notBefore, notAfter time.Time) IssueOption {
	return func(c *x509.Certificate) {
		c.NotBefore = notBefore
		c.NotAfter = notAfter
	}
}

// Expired makes the certificate expire one hour before now.
func Expired() IssueOption {
	now := time.Now()
	return ValidBetween(now.Add(-48*time.Hour), now.Add(-time.Hour))
}

// NewAuthority generates a fresh CA named cn.
func NewAuthority(cn string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return newAuthorityWithKey(cn, key)
}

// SharedKeyAuthority returns a second CA with a different serial number that
// reuses the subject and key of a. Certificates issued by either validate
// against both.
func SharedKeyAuthority(a *Authority) (*Authority, error) {
	return newAuthorityWithKey(a.Cert.Subject.CommonName, a.Key)
}

func newAuthorityWithKey(cn string, key *ecdsa.PrivateKey) (*Authority, error) {
	tmpl, err := template(cn)
	if err != nil {
		return nil, err
	}
	tmpl.IsCA = true
	tmpl.BasicConstraintsValid = true
	tmpl.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign

	cert, err := sign(tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &Authority{Cert: cert, Key: key}, nil
}

// Issue creates a device certificate signed by the authority.
func (a *Authority) Issue(cn string, opts ...IssueOption) (*Device, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl, err := template(cn)
	if err != nil {
		return nil, err
	}
	tmpl.KeyUsage = x509.KeyUsageDigitalSignature
	for _, opt := range opts {
		opt(tmpl)
	}

	cert, err := sign(tmpl, a.Cert, &key.PublicKey, a.Key)
	if err != nil {
		return nil, err
	}
	return &Device{Cert: cert, Key: key}, nil
}

// PEM returns the PEM encoding of the authority certificate.
func (a *Authority) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: a.Cert.Raw})
}

func template(cn string) (*x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"NBT Test"}},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
	}, nil
}

func sign(tmpl, parent *x509.Certificate, pub *ecdsa.PublicKey, priv *ecdsa.PrivateKey) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, priv)
	if err != nil {
		return nil, fmt.Errorf("create certificate %q: %w", tmpl.Subject.CommonName, err)
	}
	return x509.ParseCertificate(der)
}

// PKI bundles the two anchors of the brand protection policy and a genuine device.
type PKI struct {
	Manufacturing *Authority
	SampleRoot    *Authority
	Device        *Device
}

// NewPKI generates both anchors and a device issued by the manufacturing CA.
func NewPKI() (*PKI, error) {
	mfg, err := NewAuthority("Test Manufacturing CA")
	if err != nil {
		return nil, err
	}
	root, err := NewAuthority("Test Sample Root CA")
	if err != nil {
		return nil, err
	}
	dev, err := mfg.Issue("NBT Device")
	if err != nil {
		return nil, err
	}
	return &PKI{Manufacturing: mfg, SampleRoot: root, Device: dev}, nil
}

// MustPKI is NewPKI that panics on error.
func MustPKI() *PKI {
	p, err := NewPKI()
	if err != nil {
		panic(err)
	}
	return p
}

// Anchors returns the trust anchors matching the PKI.
func (p *PKI) Anchors() *trust.AnchorSet {
	return &trust.AnchorSet{
		Manufacturing: p.Manufacturing.Cert,
		SampleRoot:    p.SampleRoot.Cert,
	}
}
