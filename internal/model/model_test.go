package model

import "testing"

func TestAttributeEqualCaseInsensitiveNameByteExactValues(t *testing.T) {
	a := NewAttribute("CN", Value("a"), Value("b"))
	b := NewAttribute("cn", Value("b"), Value("a"))
	if !a.Equal(b) {
		t.Fatalf("expected attributes to be equal regardless of value order and name case")
	}

	c := NewAttribute("cn", Value("a"), Value("B"))
	if a.Equal(c) {
		t.Fatalf("expected attributes with different-case byte values to differ")
	}
}

func TestEntryAttrCreateAndMerge(t *testing.T) {
	e := NewEntry("cn=a,dc=example,dc=com")
	e.AddValue("cn", Value("a"))
	e.AddValue("CN", Value("alias"))
	attr := e.Attr("cn", false)
	if attr == nil || len(attr.Values) != 2 {
		t.Fatalf("expected repeated attribute descriptions to merge into one attribute, got %+v", attr)
	}
	if len(e.Attributes) != 1 {
		t.Fatalf("expected exactly one attribute, got %d", len(e.Attributes))
	}
}

func TestEntryToMods(t *testing.T) {
	e := NewEntry("cn=a,dc=example,dc=com")
	e.AddValue("cn", Value("a"))
	e.AddValue("sn", Value("b"))
	mods := e.ToMods()
	if len(mods) != 2 {
		t.Fatalf("expected 2 mods, got %d", len(mods))
	}
	for _, m := range mods {
		if m.Op != ModAdd {
			t.Fatalf("expected ModAdd, got %v", m.Op)
		}
	}
}

func TestAttributeAddRemoveHas(t *testing.T) {
	a := NewAttribute("cn")
	a.Add(Value("x"))
	a.Add(Value("y"))
	if !a.Has(Value("x")) {
		t.Fatalf("expected Has(x) true")
	}
	if !a.Remove(Value("x")) {
		t.Fatalf("expected Remove(x) true")
	}
	if a.Has(Value("x")) {
		t.Fatalf("expected Has(x) false after removal")
	}
}
