package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := ValidateConfig(cfg); len(errs) != 0 {
		t.Fatalf("Default() failed validation: %v", errs)
	}
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	data := []byte(`
ldap:
  address: ldaps://dir.example.com:636
  bindDN: cn=admin,dc=example,dc=com
  startTLS: true
dialect: ldif
readability: utf8
foldWidth: 120
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LDAP.Address != "ldaps://dir.example.com:636" {
		t.Fatalf("got address %q", cfg.LDAP.Address)
	}
	if cfg.LDAP.BindDN != "cn=admin,dc=example,dc=com" {
		t.Fatalf("got bindDN %q", cfg.LDAP.BindDN)
	}
	if !cfg.LDAP.StartTLS {
		t.Fatalf("expected startTLS true")
	}
	if cfg.Dialect != DialectLDIF {
		t.Fatalf("got dialect %v", cfg.Dialect)
	}
	if cfg.Readability != ReadabilityUTF8 {
		t.Fatalf("got readability %v", cfg.Readability)
	}
	if cfg.FoldWidth != 120 {
		t.Fatalf("got foldWidth %d", cfg.FoldWidth)
	}
	// Unset fields keep their Default() value.
	if cfg.TempDir == "" {
		t.Fatalf("expected tempDir to keep its default")
	}
}

func TestParseConfigEnvSubstitution(t *testing.T) {
	t.Setenv("LDVI_TEST_BINDDN", "cn=from-env,dc=example,dc=com")
	data := []byte("ldap:\n  bindDN: ${LDVI_TEST_BINDDN}\n")
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LDAP.BindDN != "cn=from-env,dc=example,dc=com" {
		t.Fatalf("got bindDN %q", cfg.LDAP.BindDN)
	}
}

func TestParseConfigInvalidEnum(t *testing.T) {
	_, err := ParseConfig([]byte("dialect: yaml\n"))
	if err != ErrInvalidEnum {
		t.Fatalf("expected ErrInvalidEnum, got %v", err)
	}
}

func TestValidateConfigReportsFoldWidth(t *testing.T) {
	cfg := Default()
	cfg.FoldWidth = 0
	errs := ValidateConfig(cfg)
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/ldvi.yaml")
	if err != ErrFileNotFound {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}
