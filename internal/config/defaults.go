package config

import (
	"os"
	"time"
)

// Default returns the configuration the editor starts from absent any
// profile overrides: extended dialect, ASCII readability (the most
// conservative, matching traditional ldapvi behavior), fold width 76 per
// RFC 2849, the OS temp directory, and a loopback LDAP target that an
// operator is expected to override.
func Default() *Config {
	return &Config{
		LDAP: LDAPConfig{
			Address: "ldap://localhost:389",
			Timeout: 30 * time.Second,
		},
		Dialect:     DialectExtended,
		Readability: ReadabilityASCII,
		FoldWidth:   76,
		TempDir:     os.TempDir(),
	}
}
