// Package model holds the in-memory representation of LDAP entries,
// attributes, and modifications shared by every parser, printer, and the
// diff engine.
package model

import "strings"

// DN is a distinguished name, "rdn,rdn,...,rdn". The empty string denotes
// the root. The model never re-parses a DN for semantic equality; see
// package dn for the rename-only RDN split.
type DN string

// Value is a single attribute value. Not necessarily UTF-8.
type Value []byte

// Attribute pairs an attribute description (name plus optional
// semicolon-separated options) with an ordered, possibly-duplicate list of
// values. Order is preserved but not significant for equality.
type Attribute struct {
	Description string
	Values      []Value
}

// NewAttribute creates an attribute with the given description and values.
func NewAttribute(description string, values ...Value) *Attribute {
	return &Attribute{Description: description, Values: values}
}

// Add appends a value to the attribute.
func (a *Attribute) Add(v Value) {
	a.Values = append(a.Values, v)
}

// Has reports whether v is present among the attribute's values, by exact
// byte equality.
func (a *Attribute) Has(v Value) bool {
	for _, existing := range a.Values {
		if byteEqual(existing, v) {
			return true
		}
	}
	return false
}

// Remove deletes the first occurrence of v (by exact byte equality) and
// reports whether a value was removed.
func (a *Attribute) Remove(v Value) bool {
	for i, existing := range a.Values {
		if byteEqual(existing, v) {
			a.Values = append(a.Values[:i], a.Values[i+1:]...)
			return true
		}
	}
	return false
}

// SameDescription reports whether two attribute descriptions name the same
// attribute, case-insensitively.
func SameDescription(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Equal reports whether two attributes are equal: descriptions match
// case-insensitively and value multisets match by exact byte equality.
func (a *Attribute) Equal(b *Attribute) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !SameDescription(a.Description, b.Description) {
		return false
	}
	return sameMultiset(a.Values, b.Values)
}

// ToMod converts the attribute into a single Mod of the given op.
func (a *Attribute) ToMod(op ModOp) Mod {
	return Mod{Op: op, Description: a.Description, Values: append([]Value(nil), a.Values...)}
}

// Entry is a DN plus an ordered list of attributes, each description
// occurring at most once.
type Entry struct {
	DN         DN
	Attributes []*Attribute
}

// NewEntry creates an empty entry with the given DN.
func NewEntry(d DN) *Entry {
	return &Entry{DN: d}
}

// Attr locates the attribute with the given description, case-insensitively.
// If create is true and no such attribute exists, a new empty attribute is
// appended and returned.
func (e *Entry) Attr(description string, create bool) *Attribute {
	for _, a := range e.Attributes {
		if SameDescription(a.Description, description) {
			return a
		}
	}
	if !create {
		return nil
	}
	a := &Attribute{Description: description}
	e.Attributes = append(e.Attributes, a)
	return a
}

// AddValue appends a value to the named attribute, creating it (in document
// order) if it does not already exist. This is also how the extended and
// LDIF parsers merge repeated attribute descriptions into one attribute.
func (e *Entry) AddValue(description string, v Value) {
	e.Attr(description, true).Add(v)
}

// ToMods converts the entry into one ADD modification per attribute, in
// document order, each carrying all of that attribute's values.
func (e *Entry) ToMods() []Mod {
	mods := make([]Mod, 0, len(e.Attributes))
	for _, a := range e.Attributes {
		mods = append(mods, a.ToMod(ModAdd))
	}
	return mods
}

// ModOp is the kind of change a Mod describes.
type ModOp int

const (
	// ModAdd adds values to an attribute.
	ModAdd ModOp = iota
	// ModDelete deletes values from an attribute, or the whole attribute
	// when Values is empty.
	ModDelete
	// ModReplace replaces all of an attribute's values.
	ModReplace
)

// String returns the LDIF/extended-dialect keyword for the operation.
func (op ModOp) String() string {
	switch op {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Mod is a single tagged modification: an operation, the attribute
// description it targets, and the (possibly empty) list of values it
// carries.
//
// DELETE with empty Values means "delete the entire attribute". ADD and
// REPLACE with empty Values are rejected by the parsers (REPLACE with
// empty values is accepted from LDIF input, meaning "delete if present",
// but the diff engine never emits it).
type Mod struct {
	Op          ModOp
	Description string
	Values      []Value
}

// byteEqual compares two values for exact byte equality.
func byteEqual(a, b Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameMultiset reports whether a and b contain the same values the same
// number of times, by exact byte equality. Order is irrelevant.
func sameMultiset(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, va := range a {
		found := false
		for j, vb := range b {
			if used[j] {
				continue
			}
			if byteEqual(va, vb) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
