package dn

import "testing"

func TestSplitRDN(t *testing.T) {
	cases := []struct {
		name       string
		in         string
		rdn, parent string
	}{
		{"root", "", "", ""},
		{"single rdn", "cn=old", "cn=old", ""},
		{"two rdns", "cn=old,dc=example,dc=com", "cn=old", "dc=example,dc=com"},
		{"escaped comma in value", `cn=Smith\, John,dc=example,dc=com`, `cn=Smith\, John`, "dc=example,dc=com"},
		{"doubled backslash before comma is a separator", `cn=x\\,dc=example,dc=com`, `cn=x\\`, "dc=example,dc=com"},
		{"tripled backslash before comma is escaped", `cn=x\\\,y,dc=example,dc=com`, `cn=x\\\,y`, "dc=example,dc=com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rdn, parent := SplitRDN(tc.in)
			if rdn != tc.rdn || parent != tc.parent {
				t.Fatalf("SplitRDN(%q) = (%q, %q), want (%q, %q)", tc.in, rdn, parent, tc.rdn, tc.parent)
			}
			if Join(rdn, parent) != tc.in {
				t.Fatalf("Join(SplitRDN(%q)) round-trip failed: got %q", tc.in, Join(rdn, parent))
			}
		})
	}
}

func TestSplitRDNProperty(t *testing.T) {
	// The split point must always be a comma whose preceding backslash run
	// has even length; for a handful of adversarial strings, check that
	// property at the comma firstUnescapedComma picks.
	inputs := []string{
		`a\,b,c`,
		`a\\,b,c`,
		`a\\\,b,c`,
		`a\\\\,b,c`,
		`,,,`,
		`\,`,
	}
	for _, s := range inputs {
		idx := firstUnescapedComma(s)
		if idx < 0 {
			continue
		}
		if s[idx] != ',' {
			t.Fatalf("firstUnescapedComma(%q) = %d, not a comma", s, idx)
		}
		if !backslashRunEven(s, idx) {
			t.Fatalf("firstUnescapedComma(%q) = %d has an odd backslash run", s, idx)
		}
	}
}

func TestLeftmostAttributeValue(t *testing.T) {
	if got := LeftmostAttribute("cn=old"); got != "cn" {
		t.Fatalf("LeftmostAttribute = %q, want cn", got)
	}
	if got := LeftmostValue("cn=old"); got != "old" {
		t.Fatalf("LeftmostValue = %q, want old", got)
	}
}
