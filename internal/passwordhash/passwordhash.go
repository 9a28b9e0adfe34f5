// Package passwordhash is a reference implementation of codec.Hasher,
// covering the plain and salted SHA/MD5 schemes via stdlib crypto.
// Grounded on oba/internal/server/auth.go's hashSHA256/hashSSHA256 pair
// (digest-then-salt, RFC 2307 {SCHEME}base64 framing); generalized from
// SHA-256/512 down to the SHA-1/MD5 schemes the extended dialect and LDIF
// both actually name in their value encodings.
package passwordhash

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"hash"

	"github.com/KilimcininKorOglu/ldvi/internal/codec"
)

// SaltLength is the number of random salt bytes appended before hashing
// for the salted schemes.
const SaltLength = 8

// Hasher hashes plaintext passwords for the "sha", "ssha", "md5", and
// "smd5" schemes via stdlib crypto/sha1 and crypto/md5. "crypt" and
// "cryptmd5" have no stdlib equivalent and are left to the caller: Hash
// returns codec.ErrUnsupportedScheme for them, same as for any scheme it
// has never heard of.
type Hasher struct{}

var _ codec.Hasher = Hasher{}

// Hash implements codec.Hasher.
func (Hasher) Hash(scheme string, plaintext []byte) ([]byte, error) {
	prefix, ok := codec.ExpectedPrefix(scheme)
	if !ok {
		return nil, fmt.Errorf("passwordhash: %w: %q", codec.ErrUnsupportedScheme, scheme)
	}

	switch scheme {
	case "sha":
		sum := sha1.Sum(plaintext)
		return encode(prefix, sum[:]), nil
	case "ssha":
		return hashSalted(prefix, plaintext, sha1.New)
	case "md5":
		sum := md5.Sum(plaintext)
		return encode(prefix, sum[:]), nil
	case "smd5":
		return hashSalted(prefix, plaintext, md5.New)
	default:
		return nil, fmt.Errorf("passwordhash: %w: %q", codec.ErrUnsupportedScheme, scheme)
	}
}

func hashSalted(prefix string, plaintext []byte, newHash func() hash.Hash) ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("passwordhash: generating salt: %w", err)
	}
	h := newHash()
	h.Write(plaintext)
	h.Write(salt)
	digest := h.Sum(nil)
	return encode(prefix, append(digest, salt...)), nil
}

func encode(prefix string, data []byte) []byte {
	out := make([]byte, 0, len(prefix)+base64Len(len(data)))
	out = append(out, prefix...)
	out = append(out, codec.EncodeBase64(data)...)
	return out
}

func base64Len(n int) int {
	return ((n + 2) / 3) * 4
}
