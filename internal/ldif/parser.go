// Package ldif implements RFC 2849 LDIF: the portable interchange dialect
// an editing session can read or write instead of the native extended
// format. Grounded on oba/internal/backup.LDIFImporter's add-only parser,
// generalized here to the full changetype grammar (add/delete/modify/
// modrdn/moddn) and rebuilt over internal/linescan so offsets and
// peek/skip work the same way they do for internal/extfmt.
package ldif

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/KilimcininKorOglu/ldvi/internal/dn"
	"github.com/KilimcininKorOglu/ldvi/internal/linescan"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

// Parser reads RFC 2849 LDIF.
type Parser struct{}

// NewParser returns an LDIF Parser.
func NewParser() *Parser { return &Parser{} }

var _ record.Parser = (*Parser)(nil)

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
			if err := maybeConsumeVersionHeader(sc); err != nil {
				return nil, err
			}
		}
	}
	return sc, nil
}

func maybeConsumeVersionHeader(sc *linescan.Scanner) error {
	line, _, err := sc.ReadLine()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(line, []byte("version:")) {
		return sc.SeekTo(0)
	}
	val := strings.TrimSpace(string(line[len("version:"):]))
	if val != "1" {
		return record.NewParseError(record.KindBadVersion, 0, fmt.Sprintf("unsupported LDIF version %q, want \"1\"", val), record.ErrBadVersion)
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

// readFoldedLine reads one logical line, merging any immediately
// following continuation lines (those starting with a single SPACE) into
// it with no escaping, per RFC 2849 folding.
func readFoldedLine(sc *linescan.Scanner) (line []byte, pos int64, err error) {
	line, pos, err = sc.ReadLine()
	if err != nil {
		return nil, pos, err
	}
	for {
		b, perr := sc.PeekByte()
		if perr == io.EOF || b != ' ' {
			break
		}
		cont, _, cerr := sc.ReadLine()
		if cerr != nil {
			return nil, pos, cerr
		}
		line = append(line, cont[1:]...)
	}
	return line, pos, nil
}

// skipBlankAndComments advances past blank lines and '#'-prefixed comment
// lines, returning the next significant folded line.
func skipBlankAndComments(sc *linescan.Scanner) (line []byte, pos int64, err error) {
	for {
		line, pos, err = readFoldedLine(sc)
		if err != nil {
			return nil, pos, err
		}
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		return line, pos, nil
	}
}

// dnLine parses a "dn:" or "dn::" line.
func dnLine(line []byte, pos int64) (model.DN, error) {
	if bytes.HasPrefix(line, []byte("dn::")) {
		v, err := decodeBase64(bytes.TrimSpace(line[4:]))
		if err != nil {
			return "", record.NewParseError(record.KindBadEncoding, pos, "invalid base64 DN", err)
		}
		return model.DN(v), nil
	}
	if bytes.HasPrefix(line, []byte("dn:")) {
		return model.DN(strings.TrimSpace(string(line[3:]))), nil
	}
	return "", record.NewParseError(record.KindBadSyntax, pos, "record does not start with \"dn:\"", nil)
}

// readHeader reads a record's "dn:" line and, if present, its
// "changetype:" line, classifying the record's key. A record with no
// changetype line is classified as "add" per RFC 2849's own content-entry
// convention; either way, a following "ldapvi-key: <token>" line (the
// proprietary extension that lets this dialect address clean-file
// records by number, the way the native extended format does with its
// numeric header prefix) overrides that "add" key with <token>.
func (p *Parser) readHeader(sc *linescan.Scanner) (key record.Key, d model.DN, pos int64, err error) {
	var line []byte
	line, pos, err = skipBlankAndComments(sc)
	if err == io.EOF {
		return "", "", pos, io.EOF
	}
	if err != nil {
		return "", "", pos, err
	}
	d, err = dnLine(line, pos)
	if err != nil {
		return "", "", pos, err
	}
	if d == "" {
		return "", "", pos, record.NewParseError(record.KindBadSyntax, pos, "record has an empty DN", nil)
	}

	key = record.KeyAdd
	ctOffset := sc.Offset()
	ctLine, ctPos, cterr := readFoldedLine(sc)
	if cterr != nil && cterr != io.EOF {
		return "", "", pos, cterr
	}
	switch {
	case cterr == io.EOF:
		return key, d, pos, nil
	case bytes.HasPrefix(ctLine, []byte("changetype:")):
		ct := strings.TrimSpace(string(ctLine[len("changetype:"):]))
		switch ct {
		case "add":
			key = record.KeyAdd
		case "delete":
			return record.KeyDelete, d, pos, nil
		case "modify":
			return record.KeyModify, d, pos, nil
		case "modrdn", "moddn":
			return record.KeyRename, d, pos, nil
		default:
			return "", "", ctPos, record.NewParseError(record.KindBadSyntax, ctPos, fmt.Sprintf("unknown changetype %q", ct), nil)
		}
	default:
		if err := sc.SeekTo(ctOffset); err != nil {
			return "", "", pos, err
		}
	}

	keyOffset := sc.Offset()
	keyLine, keyPos, kerr := readFoldedLine(sc)
	if kerr != nil && kerr != io.EOF {
		return "", "", pos, kerr
	}
	if kerr == io.EOF || !bytes.HasPrefix(keyLine, []byte("ldapvi-key:")) {
		if kerr == nil {
			if err := sc.SeekTo(keyOffset); err != nil {
				return "", "", pos, err
			}
		}
		return key, d, pos, nil
	}
	token := strings.TrimSpace(string(keyLine[len("ldapvi-key:"):]))
	if token == "" {
		return "", "", keyPos, record.NewParseError(record.KindBadSyntax, keyPos, "ldapvi-key requires a token", nil)
	}
	return record.Key(token), d, pos, nil
}

// ReadEntry implements record.Parser.
func (p *Parser) ReadEntry(s io.ReadSeeker, offset int64, wantEntry bool) (record.Record, error) {
	sc, err := p.scannerAt(s, offset)
	if err != nil {
		return record.Record{}, err
	}
	key, d, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return record.Record{}, io.EOF
	}
	if err != nil {
		return record.Record{}, err
	}
	if key == record.KeyDelete || key == record.KeyModify || key == record.KeyRename {
		return record.Record{}, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("unexpected %q record where an entry record was expected", key), record.ErrBadKey)
	}
	entry, err := readAttrvalBody(sc, d, wantEntry)
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
	key, d, _, err := p.readHeader(sc)
	if err == io.EOF {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	switch key {
	case record.KeyDelete:
		if err := readDeleteBody(sc); err != nil {
			return "", err
		}
	case record.KeyModify:
		if _, err := readModifyBody(sc); err != nil {
			return "", err
		}
	case record.KeyRename:
		if _, _, err := readRenameBody(sc, d); err != nil {
			return "", err
		}
	default:
		if _, err := readAttrvalBody(sc, d, false); err != nil {
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
	key, d, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return "", 0, io.EOF
	}
	if err != nil {
		return "", 0, err
	}
	if key != record.KeyDelete {
		return "", 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("expected a %q record, got %q", record.KeyDelete, key), record.ErrBadKey)
	}
	if err := readDeleteBody(sc); err != nil {
		return "", 0, err
	}
	return d, pos, nil
}

func readDeleteBody(sc *linescan.Scanner) error {
	line, pos, err := readFoldedLine(sc)
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
	key, d, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return "", nil, 0, io.EOF
	}
	if err != nil {
		return "", nil, 0, err
	}
	if key != record.KeyModify {
		return "", nil, 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("expected a %q record, got %q", record.KeyModify, key), record.ErrBadKey)
	}
	mods, err := readModifyBody(sc)
	if err != nil {
		return "", nil, 0, err
	}
	return d, mods, pos, nil
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

func readModifyBody(sc *linescan.Scanner) ([]model.Mod, error) {
	var mods []model.Mod
	for {
		line, pos, err := readFoldedLine(sc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		if line[0] == '#' {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, record.NewParseError(record.KindBadSyntax, pos, "modify operation line is missing a colon", nil)
		}
		op, ok := parseModOp(string(line[:colon]))
		if !ok {
			return nil, record.NewParseError(record.KindBadSyntax, pos, fmt.Sprintf("unknown modify operation %q", line[:colon]), nil)
		}
		attr := strings.TrimSpace(string(line[colon+1:]))
		if attr == "" {
			return nil, record.NewParseError(record.KindBadSyntax, pos, "modify operation line is missing an attribute name", nil)
		}

		var values []model.Value
		for {
			vline, vpos, err := readFoldedLine(sc)
			if err == io.EOF {
				return nil, record.NewParseError(record.KindBadSyntax, vpos, "modify block is missing its \"-\" terminator", nil)
			}
			if err != nil {
				return nil, err
			}
			if string(vline) == "-" {
				break
			}
			if len(vline) == 0 {
				return nil, record.NewParseError(record.KindBadSyntax, vpos, "unexpected blank line inside a modify block", nil)
			}
			v, verr := readAttrValueLine(vline, vpos)
			if verr != nil {
				return nil, verr
			}
			if !strings.EqualFold(v.attr, attr) {
				return nil, record.NewParseError(record.KindBadSyntax, vpos, fmt.Sprintf("modify block for %q contains a value line for %q", attr, v.attr), nil)
			}
			values = append(values, v.value)
		}
		if (op == model.ModAdd) && len(values) == 0 {
			return nil, record.NewParseError(record.KindBadSyntax, pos, fmt.Sprintf("add %s has no values", attr), nil)
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
	key, d, pos, err := p.readHeader(sc)
	if err == io.EOF {
		return "", "", false, 0, io.EOF
	}
	if err != nil {
		return "", "", false, 0, err
	}
	if key != record.KeyRename {
		return "", "", false, 0, record.NewParseError(record.KindBadKey, pos, fmt.Sprintf("expected a %q record, got %q", record.KeyRename, key), record.ErrBadKey)
	}
	newDN, deleteOldRDN, err := readRenameBody(sc, d)
	if err != nil {
		return "", "", false, 0, err
	}
	return d, newDN, deleteOldRDN, pos, nil
}

// readRenameBody reads "newrdn:", "deleteoldrdn:", and an optional
// "newsuperior:" line, and synthesizes the full new DN: newrdn joined with
// newsuperior when that line is present (newrdn alone when it is empty),
// otherwise with the old DN's parent.
func readRenameBody(sc *linescan.Scanner, oldDN model.DN) (model.DN, bool, error) {
	line, pos, err := readFoldedLine(sc)
	if err != nil || !bytes.HasPrefix(line, []byte("newrdn:")) {
		if err == nil {
			err = record.NewParseError(record.KindBadSyntax, pos, "rename record is missing \"newrdn:\"", nil)
		}
		return "", false, err
	}
	newRDN, err := readRDNValue(line, pos)
	if err != nil {
		return "", false, err
	}

	line, pos, err = readFoldedLine(sc)
	if err != nil || !bytes.HasPrefix(line, []byte("deleteoldrdn:")) {
		if err == nil {
			err = record.NewParseError(record.KindBadSyntax, pos, "rename record is missing \"deleteoldrdn:\"", nil)
		}
		return "", false, err
	}
	flag := strings.TrimSpace(string(line[len("deleteoldrdn:"):]))
	var deleteOldRDN bool
	switch flag {
	case "1":
		deleteOldRDN = true
	case "0":
		deleteOldRDN = false
	default:
		return "", false, record.NewParseError(record.KindBadSyntax, pos, fmt.Sprintf("deleteoldrdn must be \"0\" or \"1\", got %q", flag), nil)
	}

	newSuperior, hasSuperior := "", false
	line, pos, err = readFoldedLine(sc)
	switch {
	case err != nil && err != io.EOF:
		return "", false, err
	case err == nil && bytes.HasPrefix(line, []byte("newsuperior:")):
		newSuperior = strings.TrimSpace(string(line[len("newsuperior:"):]))
		hasSuperior = true
	case err == nil && len(line) != 0:
		return "", false, record.NewParseError(record.KindBadSyntax, pos, "unexpected trailing line in rename record", nil)
	}

	if !hasSuperior {
		_, parent := dn.SplitRDN(string(oldDN))
		newSuperior = parent
	}
	newDN := dn.Join(newRDN, newSuperior)
	return model.DN(newDN), deleteOldRDN, nil
}

type attrValue struct {
	attr  string
	value model.Value
}

// readAttrValueLine parses one "attr: value" or "attr:: base64" line.
func readAttrValueLine(line []byte, pos int64) (attrValue, error) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return attrValue{}, record.NewParseError(record.KindBadSyntax, pos, "attribute line is missing a colon", nil)
	}
	attr := string(line[:colon])
	rest := line[colon+1:]
	if len(rest) > 0 && rest[0] == '<' {
		urlValue := bytes.TrimSpace(rest[1:])
		v, err := readFileURLValue(urlValue, pos)
		if err != nil {
			return attrValue{}, err
		}
		return attrValue{attr: attr, value: v}, nil
	}
	if len(rest) > 0 && rest[0] == ':' {
		v, err := decodeBase64(bytes.TrimSpace(rest[1:]))
		if err != nil {
			return attrValue{}, record.NewParseError(record.KindBadEncoding, pos, "invalid base64 value", err)
		}
		return attrValue{attr: attr, value: v}, nil
	}
	return attrValue{attr: attr, value: model.Value(strings.TrimSpace(string(rest)))}, nil
}

// readRDNValue parses the value half of "newrdn:" or "newrdn::".
func readRDNValue(line []byte, pos int64) (string, error) {
	if bytes.HasPrefix(line, []byte("newrdn::")) {
		v, err := decodeBase64(bytes.TrimSpace(line[len("newrdn::"):]))
		if err != nil {
			return "", record.NewParseError(record.KindBadEncoding, pos, "invalid base64 newrdn", err)
		}
		return string(v), nil
	}
	return strings.TrimSpace(string(line[len("newrdn:"):])), nil
}

// readAttrvalBody reads a plain entry's (or add record's) attribute
// lines, up to the terminating blank line or end of stream.
func readAttrvalBody(sc *linescan.Scanner, d model.DN, wantEntry bool) (*model.Entry, error) {
	entry := model.NewEntry(d)
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
		line, pos, err := readFoldedLine(sc)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		if line[0] == '#' {
			continue
		}
		if bytes.HasPrefix(line, []byte("control:")) {
			return nil, record.NewParseError(record.KindNotSupported, pos, "LDIF control lines are not supported", record.ErrNotSupported)
		}
		av, err := readAttrValueLine(line, pos)
		if err != nil {
			return nil, err
		}
		if wantEntry {
			entry.AddValue(av.attr, av.value)
		}
	}
	if !wantEntry {
		return nil, nil
	}
	return entry, nil
}
