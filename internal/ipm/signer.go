package ipm

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"golang.org/x/crypto/pkcs12"
)

// Signer adds an enveloped XMLDSig signature to outgoing documents. The reference
// covers the whole document (URI ""), canonicalized with inclusive C14N 1.0, and the
// signing certificate chain is embedded in KeyInfo.
type Signer struct {
	key   *rsa.PrivateKey
	chain []*x509.Certificate
}

// NewSigner creates a signer from an RSA key and its certificate chain, leaf first
func NewSigner(key *rsa.PrivateKey, chain ...*x509.Certificate) (*Signer, error) {
	if key == nil {
		return nil, errors.New("signing key is required")
	}
	if len(chain) == 0 {
		return nil, errors.New("signing certificate is required")
	}
	leaf, ok := chain[0].PublicKey.(*rsa.PublicKey)
	if !ok || !leaf.Equal(&key.PublicKey) {
		return nil, errors.New("certificate does not match signing key")
	}
	return &Signer{key: key, chain: chain}, nil
}

// LoadSigner reads a PKCS#12 (.pfx/.p12) bundle. Bundles that carry the issuer
// chain next to the leaf certificate are supported.
func LoadSigner(path, password string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}

	var key *rsa.PrivateKey
	var certs []*x509.Certificate
	for _, block := range blocks {
		switch block.Type {
		case "PRIVATE KEY":
			key, err = parseRSAKey(block)
			if err != nil {
				return nil, err
			}
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}
	}
	if key == nil {
		return nil, errors.New("certificate bundle has no private key")
	}

	// leaf first
	for i, cert := range certs {
		if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok && pub.Equal(&key.PublicKey) {
			certs[0], certs[i] = certs[i], certs[0]
			break
		}
	}
	return NewSigner(key, certs...)
}

func parseRSAKey(block *pem.Block) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("only RSA signing keys are supported")
	}
	return key, nil
}

// Certificate returns the signing certificate
func (s *Signer) Certificate() *x509.Certificate {
	return s.chain[0]
}

// Sign returns doc with a Signature element appended to its root
func (s *Signer) Sign(doc string) (string, error) {
	parsed := etree.NewDocument()
	if err := parsed.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}
	root := parsed.Root()
	if root == nil {
		return "", errors.New("document has no root element")
	}

	raw := make([][]byte, len(s.chain))
	for i, cert := range s.chain {
		raw[i] = cert.Raw
	}
	ctx := dsig.NewDefaultSigningContext(dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: raw,
		PrivateKey:  s.key,
	}))
	ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()

	signed, err := ctx.SignEnveloped(root)
	if err != nil {
		return "", fmt.Errorf("failed to sign document: %w", err)
	}
	parsed.SetRoot(signed)
	return parsed.WriteToString()
}
