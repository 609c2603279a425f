// Package signer loads the agent's signing key and derives its ledger identity.
package signer

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aatumaykin/ledgercron/internal/identity"
)

// Signer signs outbound ledger envelopes.
type Signer interface {
	// Identity returns the identity the signatures are attributed to.
	Identity() identity.Identity
	// PublicKey returns the raw public key, or nil for the anonymous signer.
	PublicKey() []byte
	// Sign returns the signature of msg, or nil for the anonymous signer.
	Sign(msg []byte) ([]byte, error)
}

// Ed25519Signer signs with an Ed25519 private key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
	id  identity.Identity
}

// NewEd25519 wraps an existing private key.
func NewEd25519(key ed25519.PrivateKey) *Ed25519Signer {
	pub := key.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		key: key,
		id:  identity.FromPublicKey(pub),
	}
}

func (s *Ed25519Signer) Identity() identity.Identity { return s.id }

func (s *Ed25519Signer) PublicKey() []byte {
	return []byte(s.key.Public().(ed25519.PublicKey))
}

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.key, msg), nil
}

// AnonymousSigner carries no key; the ledger refuses transfers signed by it.
type AnonymousSigner struct{}

func (AnonymousSigner) Identity() identity.Identity   { return identity.Anonymous() }
func (AnonymousSigner) PublicKey() []byte             { return nil }
func (AnonymousSigner) Sign(_ []byte) ([]byte, error) { return nil, nil }

// Load returns the signer for the PEM file at path, or the anonymous signer when path is empty.
func Load(path string) (Signer, error) {
	if strings.TrimSpace(path) == "" {
		return AnonymousSigner{}, nil
	}
	return LoadPEM(path)
}

// LoadPEM reads a PKCS#8 encoded Ed25519 private key.
func LoadPEM(path string) (*Ed25519Signer, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	return ParsePEM(data)
}

// ParsePEM decodes a PKCS#8 encoded Ed25519 private key.
func ParsePEM(data []byte) (*Ed25519Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported key type %T (expected ed25519)", parsed)
	}
	return NewEd25519(key), nil
}

// EncodePEM serializes key as a PKCS#8 PEM block.
func EncodePEM(key ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
