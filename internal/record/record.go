// Package record defines the dialect-independent record model the
// extended and LDIF parsers both implement, and the error kinds the whole
// module distinguishes. Grounded on oba/internal/ldap's position-carrying
// ParseError and its per-package sentinel-error convention.
package record

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/KilimcininKorOglu/ldvi/internal/model"
)

// Current means "read/peek/skip from the stream's current position"
// instead of seeking to an explicit offset first.
const Current int64 = -1

// Key classifies a just-peeked record: a decimal integer (extended dialect
// only, a back-reference into the clean file), one of the change keywords,
// or KeyEntry when the printer emitted a bare entry with no key.
type Key string

// Change keywords and the bare-entry key.
const (
	KeyAdd    Key = "add"
	KeyDelete Key = "delete"
	KeyModify Key = "modify"
	KeyRename Key = "rename"
	KeyEntry  Key = "entry"
)

// IsChangeKeyword reports whether k is one of the four change keywords.
func (k Key) IsChangeKeyword() bool {
	switch k {
	case KeyAdd, KeyDelete, KeyModify, KeyRename:
		return true
	}
	return false
}

// IsNumeric reports whether k is a decimal integer.
func (k Key) IsNumeric() bool {
	_, err := strconv.Atoi(string(k))
	return err == nil
}

// Int parses a numeric key. Callers must check IsNumeric first.
func (k Key) Int() (int, error) {
	return strconv.Atoi(string(k))
}

// Record is the result of reading an attrval (non-change-keyword) record,
// or of peeking any record: its key, its entry (nil if the caller asked
// only for the key, and always nil from PeekEntry), and the absolute byte
// offset of its first significant byte.
type Record struct {
	Key   Key
	Entry *model.Entry
	Pos   int64
}

// Parser is implemented by both the extended-dialect and LDIF parsers. The
// diff engine is written against this interface alone and never knows
// which concrete dialect it is driving.
type Parser interface {
	// ReadEntry reads the record at offset (or the current position, if
	// offset == Current) and returns its key and, if wantEntry, its
	// parsed entry. Returns io.EOF at end of stream.
	ReadEntry(s io.ReadSeeker, offset int64, wantEntry bool) (Record, error)

	// PeekEntry reads only the header of the record at offset, whatever
	// its key (change keywords included), and returns its key and
	// position with a nil Entry. It restores the stream's position before
	// returning. Returns io.EOF at end of stream.
	PeekEntry(s io.ReadSeeker, offset int64) (Record, error)

	// SkipEntry consumes and discards the record's body, returning only
	// its key.
	SkipEntry(s io.ReadSeeker, offset int64) (Key, error)

	// ReadDelete reads a delete record. Returns BadKey if the record at
	// offset is not a delete record.
	ReadDelete(s io.ReadSeeker, offset int64) (d model.DN, pos int64, err error)

	// ReadModify reads a modify record.
	ReadModify(s io.ReadSeeker, offset int64) (d model.DN, mods []model.Mod, pos int64, err error)

	// ReadRename reads a rename record.
	ReadRename(s io.ReadSeeker, offset int64) (oldDN, newDN model.DN, deleteOldRDN bool, pos int64, err error)
}

// Kind classifies the error kinds the core distinguishes, per spec.
type Kind int

const (
	// KindBadSyntax is a structural violation: missing DN, malformed
	// folding, NUL in an attribute name, body in a delete record, an
	// unexpected '-' line outside modify, and so on.
	KindBadSyntax Kind = iota
	// KindBadEncoding is a value-encoding failure: invalid base64, an
	// unknown ":token", an unknown URL scheme, a file-URL read error.
	KindBadEncoding
	// KindBadVersion is an unsupported "version" header value.
	KindBadVersion
	// KindNotSupported is a syntactically well-formed construct the core
	// declines, such as a control line.
	KindNotSupported
	// KindBadKey is a change keyword where another kind was expected, or
	// a duplicate/out-of-range numeric key in the diff engine.
	KindBadKey
	// KindBadRename is a rename-validation failure.
	KindBadRename
	// KindHandlerAborted marks a handler-returned error, propagated as a
	// distinct non-syntactic error; carries no byte position.
	KindHandlerAborted
)

// String names the error kind.
func (k Kind) String() string {
	switch k {
	case KindBadSyntax:
		return "BadSyntax"
	case KindBadEncoding:
		return "BadEncoding"
	case KindBadVersion:
		return "BadVersion"
	case KindNotSupported:
		return "NotSupported"
	case KindBadKey:
		return "BadKey"
	case KindBadRename:
		return "BadRename"
	case KindHandlerAborted:
		return "HandlerAborted"
	default:
		return "Unknown"
	}
}

// Sentinel errors, one per kind, for errors.Is checks that don't need a
// byte position. ParseError wraps one of these as its Err/Kind pair when a
// position is available.
var (
	ErrBadSyntax      = errors.New("record: bad syntax")
	ErrBadEncoding    = errors.New("record: bad encoding")
	ErrBadVersion     = errors.New("record: bad version")
	ErrNotSupported   = errors.New("record: not supported")
	ErrBadKey         = errors.New("record: bad key")
	ErrBadRename      = errors.New("record: bad rename")
	ErrHandlerAborted = errors.New("record: handler aborted")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindBadSyntax:
		return ErrBadSyntax
	case KindBadEncoding:
		return ErrBadEncoding
	case KindBadVersion:
		return ErrBadVersion
	case KindNotSupported:
		return ErrNotSupported
	case KindBadKey:
		return ErrBadKey
	case KindBadRename:
		return ErrBadRename
	case KindHandlerAborted:
		return ErrHandlerAborted
	default:
		return ErrBadSyntax
	}
}

// ParseError carries a byte offset alongside a classified error kind, so a
// caller (e.g. the editor UI) can jump to the offending line. Offset is -1
// when no meaningful position is available (e.g. HandlerAborted).
type ParseError struct {
	Kind    Kind
	Offset  int64
	Message string
	Err     error
}

// NewParseError builds a ParseError for the given kind, offset, and message,
// optionally wrapping a lower-level cause.
func NewParseError(kind Kind, offset int64, message string, cause error) *ParseError {
	return &ParseError{Kind: kind, Offset: offset, Message: message, Err: cause}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record: %s at offset %d: %s: %v", e.Kind, e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("record: %s at offset %d: %s", e.Kind, e.Offset, e.Message)
}

// Unwrap exposes both the underlying cause and the kind's sentinel, so
// errors.Is(err, record.ErrBadSyntax) works even without a wrapped cause.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{sentinelFor(e.Kind), e.Err}
	}
	return []error{sentinelFor(e.Kind)}
}
