package trust

import (
	"errors"
	"fmt"
)

// ErrUntrusted is returned when no trust anchor accepts a certificate.
var ErrUntrusted = errors.New("certificate is not trusted by any anchor")

// CertificateError reports a certificate that cannot be decoded, parsed or used.
type CertificateError struct {
	Reason string
	Err    error
}

func (e *CertificateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("certificate error: %s: %v", e.Reason, e.Err)
	}
	return "certificate error: " + e.Reason
}

func (e *CertificateError) Unwrap() error { return e.Err }

// SignatureVerificationError reports a signature that does not match.
type SignatureVerificationError struct {
	Reason string
}

func (e *SignatureVerificationError) Error() string {
	return "signature verification failed: " + e.Reason
}

// ResourceNotFoundError reports a missing trust anchor resource.
type ResourceNotFoundError struct {
	Name string
	Err  error
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found: %v", e.Name, e.Err)
}

func (e *ResourceNotFoundError) Unwrap() error { return e.Err }
