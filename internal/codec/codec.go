// Package codec implements the value codecs shared by both dialect
// parsers and printers: base64, LDIF line folding, the extended dialect's
// backslash continuation, file-URL dereferencing, and the injected
// password-hash gateway interface. Grounded on the base64-or-not decision
// in oba/internal/backup.needsBase64Encoding, generalized here into a
// three-way readability policy plus the dialect-specific folding rules.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
)

// Errors returned by the codecs in this package.
var (
	ErrBadBase64          = errors.New("codec: invalid base64")
	ErrUnsupportedScheme  = errors.New("codec: unsupported password-hash scheme")
	ErrBadURLScheme       = errors.New("codec: value URL scheme is not \"file\"")
	ErrHashPrefixMismatch = errors.New("codec: hash result has unexpected prefix")
)

// DecodeBase64 decodes standard-alphabet base64 (A-Za-z0-9+/ with '='
// padding). Any byte outside the alphabet is ErrBadBase64; no whitespace is
// tolerated here, since the parser has already stripped line folding
// before this is called.
func DecodeBase64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBase64, err)
	}
	return b, nil
}

// EncodeBase64 encodes a value using the standard base64 alphabet.
func EncodeBase64(v []byte) string {
	return base64.StdEncoding.EncodeToString(v)
}

// ResolveLineEnding applies the extended dialect's trailing-backslash rule
// to one physical line of a literal value: a run of r trailing backslashes
// contributes r/2 literal backslash bytes to the content, and when r is
// odd the line continues (the caller should append a literal '\n' and read
// another physical line). This single rule covers both halves of the
// dialect's escaping: one trailing backslash continues (r=1 -> 0 literal
// bytes, continues); two are a literal escaped backslash (r=2 -> 1 literal
// byte, does not continue).
func ResolveLineEnding(line []byte) (content []byte, continues bool) {
	n := len(line)
	r := 0
	for r < n && line[n-1-r] == '\\' {
		r++
	}
	content = make([]byte, 0, n-r+r/2)
	content = append(content, line[:n-r]...)
	for i := 0; i < r/2; i++ {
		content = append(content, '\\')
	}
	return content, r%2 == 1
}

// ReadFileURL opens the path named by a "file://PATH" value and returns its
// entire contents. Any other URL scheme is ErrBadURLScheme.
func ReadFileURL(value []byte) ([]byte, error) {
	u, err := url.Parse(string(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadURLScheme, err)
	}
	if u.Scheme != "file" {
		return nil, fmt.Errorf("%w: got %q", ErrBadURLScheme, u.Scheme)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("codec: reading file URL target: %w", err)
	}
	return data, nil
}

// Hasher is the injected password-hash gateway: encode(scheme, plaintext)
// -> prefixed bytes. The core never hard-codes a hashing algorithm; see
// internal/passwordhash for a reference implementation covering the
// simplest schemes.
type Hasher interface {
	Hash(scheme string, plaintext []byte) ([]byte, error)
}

// schemePrefixes maps each supported scheme keyword to the RFC 2307-style
// prefix its hash result must begin with.
var schemePrefixes = map[string]string{
	"sha":      "{SHA}",
	"ssha":     "{SSHA}",
	"md5":      "{MD5}",
	"smd5":     "{SMD5}",
	"crypt":    "{CRYPT}",
	"cryptmd5": "{CRYPT}",
}

// ExpectedPrefix returns the RFC 2307 scheme prefix a Hasher's result must
// begin with, and whether scheme is recognized at all.
func ExpectedPrefix(scheme string) (string, bool) {
	p, ok := schemePrefixes[scheme]
	return p, ok
}

// CheckHashResult verifies that a Hasher's result for scheme begins with
// the expected prefix.
func CheckHashResult(scheme string, result []byte) error {
	prefix, ok := ExpectedPrefix(scheme)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	if len(result) < len(prefix) || string(result[:len(prefix)]) != prefix {
		return fmt.Errorf("%w: scheme %q wants prefix %q", ErrHashPrefixMismatch, scheme, prefix)
	}
	return nil
}
