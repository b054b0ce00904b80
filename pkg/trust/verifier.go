// Package trust validates tag certificates against the brand protection trust
// anchors and checks challenge signatures.
package trust

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"log/slog"
	"time"
)

// Verifier evaluates certificates and signatures. The zero value is not usable,
// build one with NewVerifier.
type Verifier struct {
	anchors *AnchorSet
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the wall clock used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithLogger sets the logger receiving per anchor rejections at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier creates a Verifier bound to anchors.
func NewVerifier(anchors *AnchorSet, opts ...Option) *Verifier {
	v := &Verifier{
		anchors: anchors,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Anchors returns the anchor set the verifier evaluates against.
func (v *Verifier) Anchors() *AnchorSet {
	return v.anchors
}

// VerifyCertificate reports whether cert chains to anchor, with anchor as the
// only trusted root, at the current time. An untrusted certificate is a false
// result, not an error; errors are reserved for unusable inputs.
func (v *Verifier) VerifyCertificate(cert, anchor *x509.Certificate) (bool, error) {
	if cert == nil || anchor == nil {
		return false, &CertificateError{Reason: "nil certificate or anchor"}
	}

	roots := x509.NewCertPool()
	roots.AddCert(anchor)

	_, err := cert.Verify(x509.VerifyOptions{
		Roots:       roots,
		CurrentTime: v.now(),
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		v.logger.Debug("anchor rejected certificate",
			"anchor", anchor.Subject.CommonName,
			"subject", cert.Subject.CommonName,
			"reason", err)
		return false, nil
	}
	return true, nil
}

// Verify applies the two-tier policy: the manufacturing CA is tried first and the
// sample root only when the first tier rejects. It returns the accepting anchor,
// or ErrUntrusted when both reject.
func (v *Verifier) Verify(cert *x509.Certificate) (Anchor, error) {
	if v.anchors == nil {
		return Anchor{}, &CertificateError{Reason: "no trust anchors loaded"}
	}
	for _, a := range v.anchors.Ordered() {
		ok, err := v.VerifyCertificate(cert, a.Cert)
		if err != nil {
			return Anchor{}, err
		}
		if ok {
			v.logger.Debug("certificate trusted", "anchor", a.Name, "subject", cert.Subject.CommonName)
			return a, nil
		}
	}
	return Anchor{}, ErrUntrusted
}

// PublicKey extracts the subject public key of cert.
func PublicKey(cert *x509.Certificate) (crypto.PublicKey, error) {
	if cert == nil {
		return nil, &CertificateError{Reason: "nil certificate"}
	}
	if cert.PublicKey == nil || cert.PublicKeyAlgorithm == x509.UnknownPublicKeyAlgorithm {
		return nil, &CertificateError{Reason: "no extractable public key"}
	}
	return cert.PublicKey, nil
}

// VerifySignature checks an X9.62 DER encoded ECDSA signature over the SHA-256
// digest of message.
func VerifySignature(pub crypto.PublicKey, message, signature []byte) error {
	key, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return &SignatureVerificationError{Reason: "public key is not ECDSA"}
	}
	if len(signature) == 0 {
		return &SignatureVerificationError{Reason: "empty signature"}
	}
	digest := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(key, digest[:], signature) {
		return &SignatureVerificationError{Reason: "signature does not match challenge"}
	}
	return nil
}

// IsVerificationFailure reports whether err belongs to the certificate or
// signature class of failures.
func IsVerificationFailure(err error) bool {
	var ce *CertificateError
	var se *SignatureVerificationError
	return errors.Is(err, ErrUntrusted) || errors.As(err, &ce) || errors.As(err, &se)
}
