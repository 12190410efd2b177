package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"phonebook/ldapdb/config"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv unsets the configuration variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LDAP_URL", "LDAP_BASEDN", "LDAP_USERNAME", "LDAP_PASSWORD", "LDAP_PAGESIZE", "JOURNAL_DSN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadEnvConfig(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, `
LDAP_URL=ldap://localhost:389
LDAP_BASEDN=dc=example,dc=org
LDAP_USERNAME="cn=admin,dc=example,dc=org"
LDAP_PASSWORD=secret
LDAP_PAGESIZE=500
`)

	cfg, err := config.LoadEnvConfig(path)
	if err != nil {
		t.Fatalf("LoadEnvConfig failed: %v", err)
	}
	want := config.Configuration{
		URL:      "ldap://localhost:389",
		BaseDN:   "dc=example,dc=org",
		Username: "cn=admin,dc=example,dc=org",
		Password: "secret",
		PageSize: 500,
	}
	if cfg != want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadEnvConfig_EnvironmentWins(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "LDAP_URL=ldap://file\nLDAP_PASSWORD=fromfile\n")
	t.Setenv("LDAP_PASSWORD", "fromenv")
	t.Setenv("JOURNAL_DSN", "postgres://localhost/journal")

	cfg, err := config.LoadEnvConfig(path)
	if err != nil {
		t.Fatalf("LoadEnvConfig failed: %v", err)
	}
	if cfg.URL != "ldap://file" || cfg.Password != "fromenv" || cfg.JournalDSN != "postgres://localhost/journal" {
		t.Errorf("unexpected configuration: %+v", cfg)
	}
	if cfg.PageSize != 0 {
		t.Errorf("PageSize should default to 0, got %d", cfg.PageSize)
	}
}

func TestLoadEnvConfig_Errors(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"missing url":       "LDAP_BASEDN=dc=example,dc=org\n",
		"invalid page size": "LDAP_URL=ldap://x\nLDAP_PAGESIZE=many\n",
		"negative size":     "LDAP_URL=ldap://x\nLDAP_PAGESIZE=-1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.LoadEnvConfig(writeEnv(t, content)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := config.LoadEnvConfig(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
