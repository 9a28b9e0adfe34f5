// Package dn implements the small amount of distinguished-name arithmetic
// the editor needs: splitting off the leftmost RDN for rename handling.
// Distinguished names are otherwise treated as opaque byte strings
// throughout the rest of the module.
package dn

import "strings"

// SplitRDN splits a distinguished name into its leftmost relative
// distinguished name and the remaining suffix ("parent"), at the first
// unescaped comma. A comma is escaped (not a separator) when it is
// preceded by an odd number of consecutive backslashes.
//
// SplitRDN("cn=old,dc=example,dc=com") returns ("cn=old", "dc=example,dc=com").
// SplitRDN("cn=old") returns ("cn=old", "").
func SplitRDN(d string) (rdn, parent string) {
	idx := firstUnescapedComma(d)
	if idx < 0 {
		return d, ""
	}
	return d[:idx], d[idx+1:]
}

// firstUnescapedComma returns the index of the first comma in s whose
// preceding run of backslashes has even length (including zero), or -1
// if no such comma exists.
func firstUnescapedComma(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		if backslashRunEven(s, i) {
			return i
		}
	}
	return -1
}

// backslashRunEven reports whether the run of consecutive backslashes
// immediately preceding s[at] has even length.
func backslashRunEven(s string, at int) bool {
	n := 0
	for i := at - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 0
}

// Join reassembles an RDN and a (possibly empty) parent into a DN.
func Join(rdn, parent string) string {
	if parent == "" {
		return rdn
	}
	return rdn + "," + parent
}

// LeftmostAttribute returns the attribute description named by an RDN's
// leftmost assertion, e.g. "cn" from "cn=old" or "cn=old+sn=x". Multi-valued
// RDNs (joined by unescaped '+') are not decomposed further than the first
// assertion, which is all the diff engine's rename validation needs.
func LeftmostAttribute(rdn string) string {
	eq := strings.IndexByte(rdn, '=')
	if eq < 0 {
		return rdn
	}
	return rdn[:eq]
}

// LeftmostValue returns the value half of an RDN's leftmost assertion,
// e.g. "old" from "cn=old".
func LeftmostValue(rdn string) string {
	eq := strings.IndexByte(rdn, '=')
	if eq < 0 {
		return ""
	}
	return rdn[eq+1:]
}
