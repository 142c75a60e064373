package ipm

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	dsig "github.com/russellhaering/goxmldsig"
)

// VerificationResult contains the signature check outcome for one document
type VerificationResult struct {
	// Valid is true only if a signature was found and verified
	Valid bool `json:"valid"`

	SignatureFound bool `json:"signature_found"`
	SignatureValid bool `json:"signature_valid"`
	// Trusted is false when the certificate was only checked against itself
	Trusted bool `json:"trusted"`

	Signer *SignerInfo `json:"signer,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// SignerInfo contains certificate subject information
type SignerInfo struct {
	Name         string    `json:"name"`
	Organization string    `json:"organization,omitempty"`
	SerialNumber string    `json:"serial_number"`
	Issuer       string    `json:"issuer"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

func (r *VerificationResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

func (r *VerificationResult) setSigner(cert *x509.Certificate) {
	signer := &SignerInfo{
		Name:         cert.Subject.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if len(cert.Subject.Organization) > 0 {
		signer.Organization = cert.Subject.Organization[0]
	}
	if cert.Issuer.CommonName != "" {
		signer.Issuer = cert.Issuer.CommonName
	} else if len(cert.Issuer.Organization) > 0 {
		signer.Issuer = cert.Issuer.Organization[0]
	}
	r.Signer = signer
}

// Verifier checks enveloped signatures produced by Signer
type Verifier struct {
	roots []*x509.Certificate
	clock clockwork.Clock
}

// NewVerifier creates a verifier trusting roots. Without roots the certificate
// embedded in the document is used, which proves integrity but not identity.
func NewVerifier(clock clockwork.Clock, roots ...*x509.Certificate) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{roots: roots, clock: clock}
}

// Verify checks the signature of a signed document
func (v *Verifier) Verify(data []byte) *VerificationResult {
	result := &VerificationResult{}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		result.addError(fmt.Sprintf("failed to parse XML: %v", err))
		return result
	}
	root := doc.Root()
	if root == nil {
		result.addError("empty XML document")
		return result
	}

	sig := findSignature(root)
	if sig == nil {
		result.addError("no Signature element found in document")
		return result
	}
	result.SignatureFound = true

	cert, err := embeddedCertificate(sig)
	if err != nil {
		result.addError(err.Error())
		return result
	}
	result.setSigner(cert)

	roots := v.roots
	result.Trusted = len(roots) > 0
	if !result.Trusted {
		roots = []*x509.Certificate{cert}
		result.Warnings = append(result.Warnings, "no trusted root configured: certificate checked against itself")
	}

	vctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: roots})
	vctx.Clock = dsig.NewFakeClock(v.clock)
	if _, err := vctx.Validate(root); err != nil {
		result.addError(fmt.Sprintf("signature validation failed: %v", err))
		return result
	}

	result.SignatureValid = true
	result.Valid = len(result.Errors) == 0
	return result
}

func findSignature(root *etree.Element) *etree.Element {
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" {
			return child
		}
	}
	return nil
}

func embeddedCertificate(sig *etree.Element) (*x509.Certificate, error) {
	el := sig.FindElement(".//X509Certificate")
	if el == nil {
		return nil, fmt.Errorf("no X509Certificate found in signature")
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(el.Text()), ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}
