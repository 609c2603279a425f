package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKey(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	data, err := EncodePEM(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.pem")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path, key
}

func TestLoad_EmptyPathIsAnonymous(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.True(t, s.Identity().IsAnonymous())
	assert.Nil(t, s.PublicKey())
	sig, err := s.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestLoad_PEM(t *testing.T) {
	path, key := writeKey(t)

	s, err := Load(path)
	require.NoError(t, err)

	pub := key.Public().(ed25519.PublicKey)
	assert.Equal(t, identity.FromPublicKey(pub), s.Identity())
	assert.False(t, s.Identity().IsAnonymous())
	assert.Equal(t, []byte(pub), s.PublicKey())

	msg := []byte("envelope")
	sig, err := s.Sign(msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, msg, sig))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	notPEM := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(notPEM, []byte("hello"), 0600))
	wrongType := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(wrongType, []byte("-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"), 0600))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.pem")},
		{"not a PEM file", notPEM},
		{"wrong block type", wrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.Error(t, err)
		})
	}
}
