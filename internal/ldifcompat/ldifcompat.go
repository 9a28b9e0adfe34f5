// Package ldifcompat cross-checks internal/ldif's output against
// github.com/go-ldap/ldif, an independent LDIF implementation, so the
// parser/printer's test suite isn't only checking itself. Grounded on
// DrThundercat-gofun's generator.writeLDIFFile, which is the pack's only
// real usage of that library (ldap.NewEntry + ldif.ToLDIF + ldif.Marshal).
package ldifcompat

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	goldif "github.com/go-ldap/ldif"

	"github.com/KilimcininKorOglu/ldvi/internal/model"
)

// Reference renders entries to LDIF text using go-ldap/ldif instead of
// internal/ldif's own printer. Tests parse both this and our own printer's
// output with our parser and assert the resulting entries agree,
// confirming our printer's encoding choices don't diverge from an
// independent implementation's idea of valid LDIF.
func Reference(entries []*model.Entry) (string, error) {
	ldapEntries := make([]*ldap.Entry, 0, len(entries))
	for _, e := range entries {
		attrs := make(map[string][]string, len(e.Attributes))
		for _, a := range e.Attributes {
			vals := make([]string, 0, len(a.Values))
			for _, v := range a.Values {
				vals = append(vals, string(v))
			}
			attrs[a.Description] = vals
		}
		ldapEntries = append(ldapEntries, ldap.NewEntry(string(e.DN), attrs))
	}

	data, err := goldif.ToLDIF(ldapEntries)
	if err != nil {
		return "", fmt.Errorf("ldifcompat: building reference LDIF structure: %w", err)
	}
	text, err := goldif.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("ldifcompat: marshaling reference LDIF: %w", err)
	}
	return text, nil
}
