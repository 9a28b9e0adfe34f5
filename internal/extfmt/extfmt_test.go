package extfmt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/KilimcininKorOglu/ldvi/internal/config"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

func TestReadEntryLiteralAndEncodedValues(t *testing.T) {
	data := "1 cn=alice,dc=example,dc=com\n" +
		"cn alice\n" +
		"description:: aGVsbG8=\n" +
		"\n"
	p := NewParser(nil)
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != "1" {
		t.Fatalf("got key %q", rec.Key)
	}
	if rec.Entry.DN != "cn=alice,dc=example,dc=com" {
		t.Fatalf("got dn %q", rec.Entry.DN)
	}
	cn := rec.Entry.Attr("cn", false)
	if cn == nil || string(cn.Values[0]) != "alice" {
		t.Fatalf("got cn %v", cn)
	}
	desc := rec.Entry.Attr("description", false)
	if desc == nil || string(desc.Values[0]) != "hello" {
		t.Fatalf("got description %v", desc)
	}
}

func TestReadEntryContinuation(t *testing.T) {
	data := "add cn=bob,dc=example,dc=com\n" +
		"description line one\\\nline two\n" +
		"\n"
	p := NewParser(nil)
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc := rec.Entry.Attr("description", false)
	if desc == nil || string(desc.Values[0]) != "line one\nline two" {
		t.Fatalf("got description %q", desc.Values[0])
	}
}

func TestReadEntryRawLength(t *testing.T) {
	data := "1 cn=raw,dc=example,dc=com\n" +
		"jpegPhoto:5 ab\x00cd\n" +
		"\n"
	p := NewParser(nil)
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := rec.Entry.Attr("jpegPhoto", false)
	if v == nil || string(v.Values[0]) != "ab\x00cd" {
		t.Fatalf("got %q", v.Values[0])
	}
}

type stubHasher struct{}

func (stubHasher) Hash(scheme string, plaintext []byte) ([]byte, error) {
	switch scheme {
	case "sha":
		return []byte("{SHA}stub"), nil
	default:
		return nil, errors.New("unsupported in stub")
	}
}

func TestReadEntryPasswordHash(t *testing.T) {
	data := "1 cn=carol,dc=example,dc=com\n" +
		"userPassword:sha secret\n" +
		"\n"
	p := NewParser(stubHasher{})
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := rec.Entry.Attr("userPassword", false)
	if v == nil || string(v.Values[0]) != "{SHA}stub" {
		t.Fatalf("got %q", v.Values[0])
	}
}

func TestReadDeleteAndModifyAndRename(t *testing.T) {
	p := NewParser(nil)

	dn, _, err := p.ReadDelete(strings.NewReader("delete cn=x,dc=example,dc=com\n\n"), 0)
	if err != nil || dn != "cn=x,dc=example,dc=com" {
		t.Fatalf("delete: got %q, err %v", dn, err)
	}

	modData := "modify cn=x,dc=example,dc=com\n" +
		"add mail\n" +
		" a@example.com\n" +
		" b@example.com\n" +
		"delete description\n" +
		"\n"
	dn, mods, _, err := p.ReadModify(strings.NewReader(modData), 0)
	if err != nil {
		t.Fatalf("modify: unexpected error: %v", err)
	}
	if dn != "cn=x,dc=example,dc=com" || len(mods) != 2 {
		t.Fatalf("got dn %q mods %v", dn, mods)
	}
	if mods[0].Op != model.ModAdd || len(mods[0].Values) != 2 {
		t.Fatalf("got mod 0: %+v", mods[0])
	}
	if mods[1].Op != model.ModDelete || len(mods[1].Values) != 0 {
		t.Fatalf("got mod 1: %+v", mods[1])
	}

	renData := "rename cn=x,dc=example,dc=com\nadd cn=y,dc=example,dc=com\n\n"
	oldDN, newDN, delOld, _, err := p.ReadRename(strings.NewReader(renData), 0)
	if err != nil {
		t.Fatalf("rename: unexpected error: %v", err)
	}
	if oldDN != "cn=x,dc=example,dc=com" || newDN != "cn=y,dc=example,dc=com" || delOld {
		t.Fatalf("got %q %q %v", oldDN, newDN, delOld)
	}
}

func TestReadEntryRejectsChangeKeywordAsAttrval(t *testing.T) {
	p := NewParser(nil)
	_, err := p.ReadEntry(strings.NewReader("delete cn=x,dc=example,dc=com\n\n"), 0, true)
	if !errors.Is(err, record.ErrBadKey) {
		t.Fatalf("expected ErrBadKey, got %v", err)
	}
}

func TestSkipEntryAdvancesPastUnreadBody(t *testing.T) {
	data := "1 cn=x,dc=example,dc=com\ncn x\n\n2 cn=y,dc=example,dc=com\ncn y\n\n"
	p := NewParser(nil)
	rs := strings.NewReader(data)
	key, err := p.SkipEntry(rs, 0)
	if err != nil || key != "1" {
		t.Fatalf("got key %q, err %v", key, err)
	}
	rec, err := p.ReadEntry(rs, record.Current, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != "2" {
		t.Fatalf("got key %q", rec.Key)
	}
}

func TestPeekEntryRestoresPosition(t *testing.T) {
	data := "1 cn=x,dc=example,dc=com\ncn x\n\n"
	p := NewParser(nil)
	rs := strings.NewReader(data)
	before, _ := rs.Seek(0, io.SeekCurrent)
	rec, err := p.PeekEntry(rs, 0)
	if err != nil || rec.Key != "1" {
		t.Fatalf("got %v, err %v", rec, err)
	}
	after, _ := rs.Seek(0, io.SeekCurrent)
	if before != after {
		t.Fatalf("expected position restored: before %d after %d", before, after)
	}
}

func TestVersionHeaderOnlyAtOffsetZero(t *testing.T) {
	data := "version ldapvi\n\n1 cn=x,dc=example,dc=com\ncn x\n\n"
	p := NewParser(nil)
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != "1" {
		t.Fatalf("got key %q", rec.Key)
	}
}

func TestBadVersionHeader(t *testing.T) {
	data := "version 99\n\n1 cn=x,dc=example,dc=com\n\n"
	p := NewParser(nil)
	_, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if !errors.Is(err, record.ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestPrintEntryAndReadBackRoundTrip(t *testing.T) {
	e := model.NewEntry("cn=round,dc=example,dc=com")
	e.AddValue("cn", model.Value("round"))
	e.AddValue("description", model.Value("line one\nline two"))
	e.AddValue("jpegPhoto", model.Value("bin\x00ary"))

	var buf bytes.Buffer
	printer := NewPrinter(config.PrinterOptions{Readability: config.ReadabilityASCII})
	if err := printer.PrintEntry(&buf, "1", e); err != nil {
		t.Fatalf("print: unexpected error: %v", err)
	}

	p := NewParser(nil)
	rec, err := p.ReadEntry(bytes.NewReader(buf.Bytes()), 0, true)
	if err != nil {
		t.Fatalf("read back: unexpected error: %v", err)
	}
	if rec.Entry.DN != e.DN {
		t.Fatalf("got dn %q", rec.Entry.DN)
	}
	if got := rec.Entry.Attr("description", false); got == nil || string(got.Values[0]) != "line one\nline two" {
		t.Fatalf("got description %v", got)
	}
	if got := rec.Entry.Attr("jpegPhoto", false); got == nil || string(got.Values[0]) != "bin\x00ary" {
		t.Fatalf("got jpegPhoto %v", got)
	}
}
