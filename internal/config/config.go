// Package config loads and validates the editor's own configuration: the
// LDAP connection to edit against, which record dialect to read and
// write, the output readability policy, fold width, and where to stage
// the clean/data file pair for a session. Adapted from oba's hand-rolled
// YAML reader (parser.go keeps its indentation-tree parser; the Config
// shape and every apply* function are new) since the teacher never reaches
// for a YAML library either.
package config

import (
	"time"
	"unicode/utf8"
)

// Dialect selects which record format a stream is read and written in.
type Dialect int

const (
	// DialectExtended is the native "extended" dialect (§4.C).
	DialectExtended Dialect = iota
	// DialectLDIF is RFC 2849 LDIF (§4.D).
	DialectLDIF
)

// String names the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectExtended:
		return "extended"
	case DialectLDIF:
		return "ldif"
	default:
		return "unknown"
	}
}

// ParseDialect parses "extended" or "ldif", case-sensitively, as written
// in a config file or passed on the command line.
func ParseDialect(s string) (Dialect, bool) {
	switch s {
	case "extended":
		return DialectExtended, true
	case "ldif":
		return DialectLDIF, true
	default:
		return 0, false
	}
}

// Readability controls which values the printer treats as safe to emit
// literally versus falling back to an encoded form.
type Readability int

const (
	// ReadabilityASCII requires printable 7-bit ASCII.
	ReadabilityASCII Readability = iota
	// ReadabilityUTF8 allows any valid UTF-8 byte sequence.
	ReadabilityUTF8
	// ReadabilityAny allows any byte sequence except NUL/LF/CR and a
	// leading SPACE or ':'.
	ReadabilityAny
)

// String names the readability policy.
func (r Readability) String() string {
	switch r {
	case ReadabilityASCII:
		return "ascii"
	case ReadabilityUTF8:
		return "utf8"
	case ReadabilityAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParseReadability parses "ascii", "utf8", or "any".
func ParseReadability(s string) (Readability, bool) {
	switch s {
	case "ascii":
		return ReadabilityASCII, true
	case "utf8":
		return ReadabilityUTF8, true
	case "any":
		return ReadabilityAny, true
	default:
		return 0, false
	}
}

// IsSafe reports whether value can be printed literally under r: it must
// contain no NUL/LF/CR, must not start with a SPACE or ':' (which would be
// mistaken for folding or an encoding marker on read-back), and must
// additionally be printable ASCII (ReadabilityASCII) or valid UTF-8
// (ReadabilityUTF8).
func IsSafe(value []byte, r Readability) bool {
	if len(value) == 0 {
		return true
	}
	if value[0] == ' ' || value[0] == ':' {
		return false
	}
	for _, b := range value {
		if b == 0 || b == '\n' || b == '\r' {
			return false
		}
	}
	switch r {
	case ReadabilityASCII:
		for _, b := range value {
			if b < 0x20 || b > 0x7e {
				return false
			}
		}
		return true
	case ReadabilityUTF8:
		return utf8.Valid(value)
	default:
		return true
	}
}

// HasNUL reports whether value contains a NUL byte, the one condition
// that forces base64 output regardless of readability policy.
func HasNUL(value []byte) bool {
	for _, b := range value {
		if b == 0 {
			return true
		}
	}
	return false
}

// PrinterOptions configures both dialects' printers.
type PrinterOptions struct {
	Readability Readability
	// FoldWidth is the LDIF printer's line-folding width; ignored by the
	// extended dialect, which never folds.
	FoldWidth int
}

// LDAPConfig is the connection the editor's ldapclient.Handler dials.
type LDAPConfig struct {
	Address      string
	BindDN       string
	BindPassword string
	StartTLS     bool
	Timeout      time.Duration
}

// Config is the editor's top-level configuration.
type Config struct {
	LDAP        LDAPConfig
	Dialect     Dialect
	Readability Readability
	FoldWidth   int
	TempDir     string
}

// Printer returns the PrinterOptions this configuration implies.
func (c *Config) Printer() PrinterOptions {
	return PrinterOptions{Readability: c.Readability, FoldWidth: c.FoldWidth}
}
