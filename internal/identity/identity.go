// Package identity implements the opaque account identity used by the ledger.
//
// An identity is a short byte string whose first byte selects the kind:
//
//	0x00                  anonymous (1 byte)
//	0x01 + hash[28]       public key identity (29 bytes)
//	0x80|i>>24 + hash[28] + i[3]  subresource i of a public key identity (32 bytes)
//
// The textual form is "m" followed by the unpadded lowercase base32 of the bytes and a
// two character checksum derived from the CRC-32 of the bytes.
package identity

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/wasilibs/go-re2"
)

const (
	tagAnonymous   = 0x00
	tagPublicKey   = 0x01
	tagSubresource = 0x80

	hashLen        = 28
	publicKeyLen   = 1 + hashLen
	subresourceLen = 1 + hashLen + 3
)

var (
	b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

	textPattern = re2.MustCompile(`^m[a-z2-7]{4,}$`)
)

// Identity is an immutable, comparable account identity. The zero value is not a valid
// identity; use Anonymous for the anonymous one.
type Identity struct {
	raw string
}

// Anonymous returns the anonymous identity.
func Anonymous() Identity {
	return Identity{raw: string([]byte{tagAnonymous})}
}

// FromPublicKey derives the identity owning the given public key bytes.
func FromPublicKey(pub []byte) Identity {
	sum := sha256.Sum224(pub)
	raw := make([]byte, 0, publicKeyLen)
	raw = append(raw, tagPublicKey)
	raw = append(raw, sum[:]...)
	return Identity{raw: string(raw)}
}

// FromBytes validates and wraps the raw byte encoding.
func FromBytes(b []byte) (Identity, error) {
	if len(b) == 0 {
		return Identity{}, apperr.New(apperr.KindIdentityDecode, "empty identity", nil)
	}
	tag := b[0]
	switch {
	case tag == tagAnonymous:
		if len(b) != 1 {
			return Identity{}, invalidLength(len(b), 1)
		}
	case tag == tagPublicKey:
		if len(b) != publicKeyLen {
			return Identity{}, invalidLength(len(b), publicKeyLen)
		}
	case tag&tagSubresource != 0:
		if len(b) != subresourceLen {
			return Identity{}, invalidLength(len(b), subresourceLen)
		}
	default:
		return Identity{}, apperr.New(apperr.KindIdentityDecode, fmt.Sprintf("unknown identity tag 0x%02x", tag), nil)
	}
	return Identity{raw: string(b)}, nil
}

func invalidLength(got, want int) error {
	return apperr.New(apperr.KindIdentityDecode, fmt.Sprintf("invalid identity length %d (expected %d)", got, want), nil)
}

// FromString parses the textual encoding.
func FromString(s string) (Identity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !textPattern.MatchString(s) {
		return Identity{}, apperr.New(apperr.KindIdentityDecode, fmt.Sprintf("malformed identity %q", s), nil)
	}

	body, sum := s[1:len(s)-2], s[len(s)-2:]
	raw, err := b32.DecodeString(strings.ToUpper(body))
	if err != nil {
		return Identity{}, apperr.New(apperr.KindIdentityDecode, fmt.Sprintf("malformed identity %q", s), err)
	}
	if checksum(raw) != sum {
		return Identity{}, apperr.New(apperr.KindIdentityDecode, fmt.Sprintf("identity %q has an invalid checksum", s), nil)
	}
	return FromBytes(raw)
}

// Decode accepts either the hex encoding of the raw bytes or the textual encoding.
// A string that decodes as hex is never reinterpreted as text.
func Decode(s string) (Identity, error) {
	if data, err := hex.DecodeString(s); err == nil {
		return FromBytes(data)
	}
	return FromString(s)
}

// Bytes returns a copy of the raw encoding.
func (i Identity) Bytes() []byte {
	return []byte(i.raw)
}

// Hex returns the hex encoding of the raw bytes.
func (i Identity) Hex() string {
	return hex.EncodeToString([]byte(i.raw))
}

// String returns the textual encoding, or an empty string for the zero value.
func (i Identity) String() string {
	if i.IsZero() {
		return ""
	}
	raw := []byte(i.raw)
	return "m" + strings.ToLower(b32.EncodeToString(raw)) + checksum(raw)
}

// IsAnonymous reports whether i is the anonymous identity.
func (i Identity) IsAnonymous() bool {
	return i.raw == string([]byte{tagAnonymous})
}

// IsZero reports whether i is the zero value.
func (i Identity) IsZero() bool {
	return i.raw == ""
}

// MarshalText implements encoding.TextMarshaler.
func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input yields the zero value.
func (i *Identity) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*i = Identity{}
		return nil
	}
	id, err := FromString(string(text))
	if err != nil {
		return err
	}
	*i = id
	return nil
}

func checksum(raw []byte) string {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.ChecksumIEEE(raw))
	return strings.ToLower(b32.EncodeToString(sum[:]))[:2]
}
