package ldif

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/KilimcininKorOglu/ldvi/internal/config"
	"github.com/KilimcininKorOglu/ldvi/internal/ldifcompat"
	"github.com/KilimcininKorOglu/ldvi/internal/model"
	"github.com/KilimcininKorOglu/ldvi/internal/record"
)

func TestReadEntryPlainAndBase64(t *testing.T) {
	data := "dn: cn=alice,dc=example,dc=com\n" +
		"cn: alice\n" +
		"description:: aGVsbG8=\n" +
		"\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != record.KeyAdd {
		t.Fatalf("got key %q", rec.Key)
	}
	if string(rec.Entry.Attr("description", false).Values[0]) != "hello" {
		t.Fatalf("got description %v", rec.Entry.Attr("description", false))
	}
}

func TestReadEntryFolding(t *testing.T) {
	data := "dn: cn=alice,dc=example,dc=com\n" +
		"description: this is a long\n value that was folded\n across lines\n" +
		"\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(rec.Entry.Attr("description", false).Values[0])
	want := "this is a longvalue that was foldedacross lines"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReadAddDeleteModifyModrdn(t *testing.T) {
	p := NewParser()

	addData := "dn: cn=bob,dc=example,dc=com\nchangetype: add\ncn: bob\nsn: bobby\n\n"
	rec, err := p.ReadEntry(strings.NewReader(addData), 0, true)
	if err != nil || rec.Key != record.KeyAdd {
		t.Fatalf("add: got %v, err %v", rec, err)
	}

	delData := "dn: cn=bob,dc=example,dc=com\nchangetype: delete\n\n"
	d, _, err := p.ReadDelete(strings.NewReader(delData), 0)
	if err != nil || d != "cn=bob,dc=example,dc=com" {
		t.Fatalf("delete: got %q, err %v", d, err)
	}

	modData := "dn: cn=bob,dc=example,dc=com\nchangetype: modify\n" +
		"add: mail\nmail: a@example.com\nmail: b@example.com\n-\n" +
		"delete: description\n-\n\n"
	d, mods, _, err := p.ReadModify(strings.NewReader(modData), 0)
	if err != nil {
		t.Fatalf("modify: unexpected error: %v", err)
	}
	if d != "cn=bob,dc=example,dc=com" || len(mods) != 2 {
		t.Fatalf("got d %q mods %v", d, mods)
	}
	if mods[0].Op != model.ModAdd || len(mods[0].Values) != 2 {
		t.Fatalf("got mod0 %+v", mods[0])
	}
	if mods[1].Op != model.ModDelete || len(mods[1].Values) != 0 {
		t.Fatalf("got mod1 %+v", mods[1])
	}

	renData := "dn: cn=bob,dc=example,dc=com\nchangetype: modrdn\nnewrdn: cn=robert\ndeleteoldrdn: 1\n\n"
	oldDN, newDN, delOld, _, err := p.ReadRename(strings.NewReader(renData), 0)
	if err != nil {
		t.Fatalf("rename: unexpected error: %v", err)
	}
	if oldDN != "cn=bob,dc=example,dc=com" || newDN != "cn=robert,dc=example,dc=com" || !delOld {
		t.Fatalf("got %q %q %v", oldDN, newDN, delOld)
	}
}

func TestReadRenameWithNewSuperior(t *testing.T) {
	p := NewParser()
	data := "dn: cn=bob,ou=old,dc=example,dc=com\nchangetype: modrdn\n" +
		"newrdn: cn=bob\ndeleteoldrdn: 0\nnewsuperior: ou=new,dc=example,dc=com\n\n"
	_, newDN, _, _, err := p.ReadRename(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newDN != "cn=bob,ou=new,dc=example,dc=com" {
		t.Fatalf("got %q", newDN)
	}
}

func TestControlLineRejected(t *testing.T) {
	data := "dn: cn=bob,dc=example,dc=com\ncontrol: 1.2.3 true\ncn: bob\n\n"
	p := NewParser()
	_, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if !errors.Is(err, record.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}

func TestVersionHeaderAndComments(t *testing.T) {
	data := "version: 1\n\n# a comment\ndn: cn=bob,dc=example,dc=com\ncn: bob\n\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Entry.DN != "cn=bob,dc=example,dc=com" {
		t.Fatalf("got dn %q", rec.Entry.DN)
	}
}

func TestPrintEntryRoundTrip(t *testing.T) {
	e := model.NewEntry("cn=round,dc=example,dc=com")
	e.AddValue("cn", model.Value("round"))
	e.AddValue("jpegPhoto", model.Value("bin\x00ary"))

	var buf bytes.Buffer
	printer := NewPrinter(config.PrinterOptions{Readability: config.ReadabilityASCII, FoldWidth: 20})
	if err := printer.PrintEntry(&buf, e); err != nil {
		t.Fatalf("print: unexpected error: %v", err)
	}

	p := NewParser()
	rec, err := p.ReadEntry(bytes.NewReader(buf.Bytes()), 0, true)
	if err != nil {
		t.Fatalf("read back: unexpected error: %v", err)
	}
	if rec.Entry.DN != e.DN {
		t.Fatalf("got dn %q", rec.Entry.DN)
	}
	if string(rec.Entry.Attr("jpegPhoto", false).Values[0]) != "bin\x00ary" {
		t.Fatalf("got jpegPhoto %v", rec.Entry.Attr("jpegPhoto", false))
	}
}

func TestReadLdapviKeyOverridesDefaultAdd(t *testing.T) {
	data := "dn: cn=a,dc=example,dc=com\nldapvi-key: 0\ncn: a\n\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != record.Key("0") {
		t.Fatalf("got key %q, want \"0\"", rec.Key)
	}
	if !rec.Key.IsNumeric() {
		t.Fatalf("key %q should be numeric", rec.Key)
	}
}

func TestReadLdapviKeyExplicitAdd(t *testing.T) {
	data := "dn: cn=new,dc=example,dc=com\nldapvi-key: add\ncn: new\n\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != record.KeyAdd {
		t.Fatalf("got key %q, want %q", rec.Key, record.KeyAdd)
	}
}

func TestReadNoLdapviKeyDefaultsToAdd(t *testing.T) {
	data := "dn: cn=plain,dc=example,dc=com\ncn: plain\n\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != record.KeyAdd {
		t.Fatalf("got key %q, want %q", rec.Key, record.KeyAdd)
	}
	if string(rec.Entry.Attr("cn", false).Values[0]) != "plain" {
		t.Fatalf("ldapvi-key line must not leak into attributes: got %v", rec.Entry.Attr("cn", false))
	}
}

func TestReadExplicitAddWithLdapviKey(t *testing.T) {
	data := "dn: cn=a,dc=example,dc=com\nchangetype: add\nldapvi-key: 3\ncn: a\n\n"
	p := NewParser()
	rec, err := p.ReadEntry(strings.NewReader(data), 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Key != record.Key("3") {
		t.Fatalf("got key %q, want \"3\"", rec.Key)
	}
}

func TestPrintKeyedEntryRoundTrip(t *testing.T) {
	e := model.NewEntry("cn=a,dc=example,dc=com")
	e.AddValue("cn", model.Value("a"))

	var buf bytes.Buffer
	printer := NewPrinter(config.PrinterOptions{Readability: config.ReadabilityASCII, FoldWidth: 76})
	if err := printer.PrintKeyedEntry(&buf, record.Key("0"), e); err != nil {
		t.Fatalf("print: unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "ldapvi-key: 0\n") {
		t.Fatalf("expected an ldapvi-key line, got:\n%s", buf.String())
	}

	rec, err := NewParser().ReadEntry(bytes.NewReader(buf.Bytes()), 0, true)
	if err != nil {
		t.Fatalf("read back: unexpected error: %v", err)
	}
	if rec.Key != record.Key("0") {
		t.Fatalf("got key %q", rec.Key)
	}
	if rec.Entry.DN != e.DN {
		t.Fatalf("got dn %q", rec.Entry.DN)
	}
}

func TestPrintKeyedEntryAddOmitsLdapviKey(t *testing.T) {
	e := model.NewEntry("cn=new,dc=example,dc=com")
	e.AddValue("cn", model.Value("new"))

	var buf bytes.Buffer
	printer := NewPrinter(config.PrinterOptions{Readability: config.ReadabilityASCII, FoldWidth: 76})
	if err := printer.PrintKeyedEntry(&buf, record.KeyAdd, e); err != nil {
		t.Fatalf("print: unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "ldapvi-key:") {
		t.Fatalf("default add classification should not need an ldapvi-key line, got:\n%s", buf.String())
	}

	rec, err := NewParser().ReadEntry(bytes.NewReader(buf.Bytes()), 0, true)
	if err != nil {
		t.Fatalf("read back: unexpected error: %v", err)
	}
	if rec.Key != record.KeyAdd {
		t.Fatalf("got key %q", rec.Key)
	}
}

func TestPrintMatchesReferenceMarshalSemantics(t *testing.T) {
	e := model.NewEntry("cn=carol,dc=example,dc=com")
	e.AddValue("cn", model.Value("carol"))
	e.AddValue("mail", model.Value("carol@example.com"))

	var buf bytes.Buffer
	printer := NewPrinter(config.PrinterOptions{Readability: config.ReadabilityASCII, FoldWidth: 76})
	if err := printer.PrintEntry(&buf, e); err != nil {
		t.Fatalf("print: unexpected error: %v", err)
	}
	ours, err := NewParser().ReadEntry(bytes.NewReader(buf.Bytes()), 0, true)
	if err != nil {
		t.Fatalf("parse ours: unexpected error: %v", err)
	}

	refText, err := ldifcompat.Reference([]*model.Entry{e})
	if err != nil {
		t.Fatalf("reference marshal: unexpected error: %v", err)
	}
	ref, err := NewParser().ReadEntry(strings.NewReader(refText), 0, true)
	if err != nil {
		t.Fatalf("parse reference: unexpected error: %v", err)
	}

	if !ours.Entry.Attr("cn", false).Equal(ref.Entry.Attr("cn", false)) {
		t.Fatalf("cn mismatch: ours %v ref %v", ours.Entry.Attr("cn", false), ref.Entry.Attr("cn", false))
	}
	if !ours.Entry.Attr("mail", false).Equal(ref.Entry.Attr("mail", false)) {
		t.Fatalf("mail mismatch: ours %v ref %v", ours.Entry.Attr("mail", false), ref.Entry.Attr("mail", false))
	}
}
