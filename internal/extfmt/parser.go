// Package extfmt implements the "extended" ldapvi dialect: the native
// format read and written in the editor's data file, keyed by either a
// numeric back-reference into the clean file or one of the four change
// keywords. Grounded on oba/internal/backup.LDIFImporter's line-oriented
// read loop and oba/internal/ber.BERDecoder's offset bookkeeping, but
// built against internal/linescan instead of a plain bufio.Scanner since
// the diff engine needs exact byte positions and random seeks.
package extfmt

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KilimcininKorOglu/ldvi/internal/codec"
	"github.com/KilimcininKorOglu/ldvi/internal/linescan"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

// Parser reads the extended dialect. The zero value is usable but rejects
// any password-hash encoding; use NewParser to supply a Hasher.
type Parser struct {
	hasher codec.Hasher
}

// NewParser returns a Parser that resolves ":scheme" value encodings
// through hasher. hasher may be nil if the stream never uses one.
func NewParser(hasher codec.Hasher) *Parser {
	return &Parser{hasher: hasher}
}

var _ record.Parser = (*Parser)(nil)

// versionHeaderPrefix is the literal token the one allowed header line
// starts with; its value must be exactly "ldapvi".
const versionHeaderPrefix = "version "

func (p *Parser) scannerAt(s io.ReadSeeker, offset int64) (*linescan.Scanner, error) {
	sc, err := linescan.NewScanner(s)
	if err != nil {
		return nil, err
	}
	if offset != record.Current {
		if err := sc.SeekTo(offset); err != nil {
			return nil, err
		}
		if offset == 0 {
			if err := p.maybeConsumeVersionHeader(sc); err != nil {
				return nil, err
			}
		}
	}
	return sc, nil
}

// maybeConsumeVersionHeader checks for and consumes a leading
// "version ldapvi" line. It is only ever invoked at the true start of a
// stream (an explicit offset 0), since that is the only point a version
// header is unambiguous.
func (p *Parser) maybeConsumeVersionHeader(sc *linescan.Scanner) error {
	line, _, err := sc.ReadLine()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(line, []byte(versionHeaderPrefix)) {
		return sc.SeekTo(0)
	}
	val := strings.TrimSpace(string(line[len(versionHeaderPrefix):]))
	if val != "ldapvi" {
		return record.NewParseError(record.KindBadVersion, 0, fmt.Sprintf("unsupported version %q, want \"ldapvi\"", val), record.ErrBadVersion)
	}
	afterVersion := sc.Offset()
	blank, _, err := sc.ReadLine()
	if err != nil && err != io.EOF {
		return err
	}
	if err == nil && len(blank) != 0 {
		return sc.SeekTo(afterVersion)
	}
	return nil
}

// readHeader reads the record's first line, "KEY DN", skipping any blank
// lines left between the previous record's terminator and this one.
func (p *Parser) readHeader(sc *linescan.Scanner) (key record.Key, dn string, pos int64, err error) {
	var line []byte
	for {
		line, pos, err = sc.ReadLine()
		if err == io.EOF {
			return "", "", pos, io.EOF
		}
		if err != nil {
			return "", "", pos, err
		}
		if len(line) != 0 {
			break
		}
	}
	idx := bytes.IndexByte(line, ' ')
	if idx < 0 {
		return record.Key(line), "", pos, record.NewParseError(record.KindBadSyntax, pos, "record header is missing a DN", nil)
	}
	key = record.Key(line[:idx])
	dn = string(line[idx+1:])
	if dn == "" {
		return key, "", pos, record.NewParseError(record.KindBadSyntax, pos, "record header has an empty DN", nil)
	}
	return key, dn, pos, nil
}

// ReadEntry implements record.Parser.
func (p *Parser) ReadEntry(s io.ReadSeeker, offset int64, wantEntry bool) (record.Record, error) {
	sc, err := p.scannerAt(s, offset)
	if err != nil {
		return record.Record{}, err
	}
	key, dn, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return record.Record{}, io.EOF
	}
	if err != nil {
		return record.Record{}, err
	}
	if key == record.KeyDelete || key == record.KeyModify || key == record.KeyRename {
		return record.Record{}, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("unexpected %q record where an entry record was expected", key), record.ErrBadKey)
	}
	entry, err := p.readAttrvalBody(sc, model.DN(dn), wantEntry)
	if err != nil {
		return record.Record{}, err
	}
	return record.Record{Key: key, Entry: entry, Pos: pos}, nil
}

// PeekEntry implements record.Parser. It reads only the record's header,
// so it reports change-keyword records as well as attrval ones.
func (p *Parser) PeekEntry(s io.ReadSeeker, offset int64) (record.Record, error) {
	start, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return record.Record{}, err
	}
	var rec record.Record
	sc, err := p.scannerAt(s, offset)
	if err == nil {
		rec.Key, _, rec.Pos, err = p.readHeader(sc)
	}
	if _, serr := s.Seek(start, io.SeekStart); serr != nil {
		return record.Record{}, serr
	}
	if err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// SkipEntry implements record.Parser.
func (p *Parser) SkipEntry(s io.ReadSeeker, offset int64) (record.Key, error) {
	sc, err := p.scannerAt(s, offset)
	if err != nil {
		return "", err
	}
	key, dn, _, err := p.readHeader(sc)
	if err == io.EOF {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	switch key {
	case record.KeyDelete:
		if err := p.readDeleteBody(sc); err != nil {
			return "", err
		}
	case record.KeyModify:
		if _, err := p.readModifyBody(sc); err != nil {
			return "", err
		}
	case record.KeyRename:
		if _, _, err := p.readRenameBody(sc); err != nil {
			return "", err
		}
	default:
		if _, err := p.readAttrvalBody(sc, model.DN(dn), false); err != nil {
			return "", err
		}
	}
	return key, nil
}

// ReadDelete implements record.Parser.
func (p *Parser) ReadDelete(s io.ReadSeeker, offset int64) (model.DN, int64, error) {
	sc, err := p.scannerAt(s, offset)
	if err != nil {
		return "", 0, err
	}
	key, dn, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return "", 0, io.EOF
	}
	if err != nil {
		return "", 0, err
	}
	if key != record.KeyDelete {
		return "", 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("expected a %q record, got %q", record.KeyDelete, key), record.ErrBadKey)
	}
	if err := p.readDeleteBody(sc); err != nil {
		return "", 0, err
	}
	return model.DN(dn), pos, nil
}

func (p *Parser) readDeleteBody(sc *linescan.Scanner) error {
	line, pos, err := sc.ReadLine()
	if err != nil && err != io.EOF {
		return err
	}
	if err == nil && len(line) != 0 {
		return record.NewParseError(record.KindBadSyntax, pos, "unexpected body in a delete record", nil)
	}
	return nil
}

// ReadModify implements record.Parser.
func (p *Parser) ReadModify(s io.ReadSeeker, offset int64) (model.DN, []model.Mod, int64, error) {
	sc, err := p.scannerAt(s, offset)
	if err != nil {
		return "", nil, 0, err
	}
	key, dn, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return "", nil, 0, io.EOF
	}
	if err != nil {
		return "", nil, 0, err
	}
	if key != record.KeyModify {
		return "", nil, 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("expected a %q record, got %q", record.KeyModify, key), record.ErrBadKey)
	}
	mods, err := p.readModifyBody(sc)
	if err != nil {
		return "", nil, 0, err
	}
	return model.DN(dn), mods, pos, nil
}

func parseModOp(s string) (model.ModOp, bool) {
	switch s {
	case "add":
		return model.ModAdd, true
	case "delete":
		return model.ModDelete, true
	case "replace":
		return model.ModReplace, true
	default:
		return 0, false
	}
}

func (p *Parser) readModifyBody(sc *linescan.Scanner) ([]model.Mod, error) {
	var mods []model.Mod
	for {
		line, pos, err := sc.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		idx := bytes.IndexByte(line, ' ')
		if idx < 0 {
			return nil, record.NewParseError(record.KindBadSyntax, pos, "modify operation line is missing an attribute name", nil)
		}
		op, ok := parseModOp(string(line[:idx]))
		if !ok {
			return nil, record.NewParseError(record.KindBadSyntax, pos, fmt.Sprintf("unknown modify operation %q", line[:idx]), nil)
		}
		attr := string(line[idx+1:])
		if attr == "" {
			return nil, record.NewParseError(record.KindBadSyntax, pos, "modify operation line is missing an attribute name", nil)
		}

		var values []model.Value
		for {
			b, err := sc.PeekByte()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			if b != ' ' {
				break
			}
			vline, _, err := sc.ReadLine()
			if err != nil {
				return nil, err
			}
			values = append(values, model.Value(append([]byte(nil), vline[1:]...)))
		}
		if (op == model.ModAdd || op == model.ModReplace) && len(values) == 0 {
			return nil, record.NewParseError(record.KindBadSyntax, pos, fmt.Sprintf("%s %s has no values", op, attr), nil)
		}
		mods = append(mods, model.Mod{Op: op, Description: attr, Values: values})
	}
	return mods, nil
}

// ReadRename implements record.Parser.
func (p *Parser) ReadRename(s io.ReadSeeker, offset int64) (model.DN, model.DN, bool, int64, error) {
	sc, err := p.scannerAt(s, offset)
	if err != nil {
		return "", "", false, 0, err
	}
	key, dn, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return "", "", false, 0, io.EOF
	}
	if err != nil {
		return "", "", false, 0, err
	}
	if key != record.KeyRename {
		return "", "", false, 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("expected a %q record, got %q", record.KeyRename, key), record.ErrBadKey)
	}
	newDN, deleteOldRDN, err := p.readRenameBody(sc)
	if err != nil {
		return "", "", false, 0, err
	}
	return model.DN(dn), newDN, deleteOldRDN, pos, nil
}

func (p *Parser) readRenameBody(sc *linescan.Scanner) (model.DN, bool, error) {
	line, pos, err := sc.ReadLine()
	if err == io.EOF || len(line) == 0 {
		return "", false, record.NewParseError(record.KindBadSyntax, pos, "rename record is missing its \"add\"/\"replace\" line", nil)
	}
	if err != nil {
		return "", false, err
	}
	idx := bytes.IndexByte(line, ' ')
	if idx < 0 {
		return "", false, record.NewParseError(record.KindBadSyntax, pos, "rename line is missing a new DN", nil)
	}
	kw := string(line[:idx])
	newDN := string(line[idx+1:])
	if newDN == "" {
		return "", false, record.NewParseError(record.KindBadSyntax, pos, "rename line has an empty new DN", nil)
	}
	var deleteOldRDN bool
	switch kw {
	case "add":
		deleteOldRDN = false
	case "replace":
		deleteOldRDN = true
	default:
		return "", false, record.NewParseError(record.KindBadSyntax, pos, fmt.Sprintf("unknown rename keyword %q, want \"add\" or \"replace\"", kw), nil)
	}

	term, tpos, err := sc.ReadLine()
	if err != nil && err != io.EOF {
		return "", false, err
	}
	if err == nil && len(term) != 0 {
		return "", false, record.NewParseError(record.KindBadSyntax, tpos, "unexpected trailing line in rename record", nil)
	}
	return model.DN(newDN), deleteOldRDN, nil
}

// readAttrvalBody reads the attribute/value lines of an add/replace,
// numeric-key, or bare-entry record, up to its terminating blank line or
// end of stream.
func (p *Parser) readAttrvalBody(sc *linescan.Scanner, dn model.DN, wantEntry bool) (*model.Entry, error) {
	entry := model.NewEntry(dn)
	for {
		b, err := sc.PeekByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == '\n' {
			sc.ReadLine()
			break
		}
		attr, encTok, hasColon, pos, err := p.readHeaderToken(sc)
		if err != nil {
			return nil, err
		}
		val, err := p.readEncodedValue(sc, encTok, hasColon, pos)
		if err != nil {
			return nil, err
		}
		entry.AddValue(attr, val)
	}
	if !wantEntry {
		return nil, nil
	}
	return entry, nil
}

// readHeaderToken reads the "attr[:enc]" token that starts an attribute
// line, up to its separating space. It must be read byte by byte (not via
// ReadLine) because the ":N" encoding's payload can contain embedded
// newlines that belong to the value, not the header.
func (p *Parser) readHeaderToken(sc *linescan.Scanner) (attr, encTok string, hasColon bool, pos int64, err error) {
	pos = sc.Offset()
	var tok []byte
	for {
		b, err := sc.ReadByte()
		if err == io.EOF {
			return "", "", false, pos, record.NewParseError(record.KindBadSyntax, pos, "end of stream while reading an attribute name", nil)
		}
		if err != nil {
			return "", "", false, pos, err
		}
		if b == ' ' {
			break
		}
		if b == '\n' {
			return "", "", false, pos, record.NewParseError(record.KindBadSyntax, pos, "attribute line is missing its value separator", nil)
		}
		if b == 0 {
			return "", "", false, pos, record.NewParseError(record.KindBadSyntax, pos, "NUL byte in attribute name", nil)
		}
		tok = append(tok, b)
	}
	s := string(tok)
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return s[:idx], s[idx+1:], true, pos, nil
	}
	return s, "", false, pos, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var hashSchemes = map[string]bool{
	"sha": true, "ssha": true, "md5": true, "smd5": true, "crypt": true, "cryptmd5": true,
}

// readEncodedValue dispatches on the encoding token already parsed by
// readHeaderToken and reads the value that follows.
func (p *Parser) readEncodedValue(sc *linescan.Scanner, encTok string, hasColon bool, pos int64) (model.Value, error) {
	switch {
	case !hasColon, encTok == "", encTok == ";":
		return p.readLiteralValue(sc)
	case encTok == ":":
		line, err := p.readRestOfLine(sc)
		if err != nil {
			return nil, err
		}
		v, err := codec.DecodeBase64(string(line))
		if err != nil {
			return nil, record.NewParseError(record.KindBadEncoding, pos, "invalid base64 value", err)
		}
		return v, nil
	case encTok == "<":
		line, err := p.readRestOfLine(sc)
		if err != nil {
			return nil, err
		}
		v, err := codec.ReadFileURL(line)
		if err != nil {
			return nil, record.NewParseError(record.KindBadEncoding, pos, "invalid file URL value", err)
		}
		return v, nil
	case isAllDigits(encTok):
		n, _ := strconv.Atoi(encTok)
		raw, err := sc.ReadN(n)
		if err != nil {
			return nil, record.NewParseError(record.KindBadEncoding, pos, fmt.Sprintf("expected %d raw value bytes", n), err)
		}
		nl, err := sc.ReadByte()
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err == nil && nl != '\n' {
			return nil, record.NewParseError(record.KindBadSyntax, pos, "raw-length value is not followed by a newline", nil)
		}
		return model.Value(raw), nil
	case hashSchemes[encTok]:
		plaintext, err := p.readRestOfLine(sc)
		if err != nil {
			return nil, err
		}
		if p.hasher == nil {
			return nil, record.NewParseError(record.KindBadEncoding, pos, fmt.Sprintf("no password-hash gateway configured for scheme %q", encTok), nil)
		}
		hashed, err := p.hasher.Hash(encTok, plaintext)
		if err != nil {
			return nil, record.NewParseError(record.KindBadEncoding, pos, fmt.Sprintf("hashing scheme %q", encTok), err)
		}
		if err := codec.CheckHashResult(encTok, hashed); err != nil {
			return nil, record.NewParseError(record.KindBadEncoding, pos, "hash gateway result", err)
		}
		return model.Value(hashed), nil
	default:
		return nil, record.NewParseError(record.KindBadEncoding, pos, fmt.Sprintf("unknown value encoding %q", encTok), record.ErrBadEncoding)
	}
}

// readRestOfLine reads one physical line as a raw value with no
// continuation merging, for encodings (base64, file URL, password hash)
// that are always a single physical line.
func (p *Parser) readRestOfLine(sc *linescan.Scanner) ([]byte, error) {
	line, pos, err := sc.ReadLine()
	if err == io.EOF {
		return nil, record.NewParseError(record.KindBadSyntax, pos, "end of stream while reading a value", nil)
	}
	if err != nil {
		return nil, err
	}
	return line, nil
}

// readLiteralValue reads the default (and ":;"-tagged) literal encoding,
// merging physical lines joined by the trailing-backslash continuation
// rule in codec.ResolveLineEnding.
func (p *Parser) readLiteralValue(sc *linescan.Scanner) (model.Value, error) {
	var buf []byte
	for {
		line, pos, err := sc.ReadLine()
		eof := err == io.EOF
		if err != nil && !eof {
			return nil, err
		}
		content, continues := codec.ResolveLineEnding(line)
		buf = append(buf, content...)
		if !continues {
			return model.Value(buf), nil
		}
		if eof {
			return nil, record.NewParseError(record.KindBadSyntax, pos, "end of stream in the middle of a continued value", nil)
		}
		buf = append(buf, '\n')
	}
}
