package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Configuration struct {
	URL      string
	BaseDN   string // optional; re-roots the built-in models
	Username string
	Password string
	PageSize uint32 // 0 disables paged searches

	// JournalDSN enables the PostgreSQL mutation journal when set.
	JournalDSN string
}

var keys = []string{
	"LDAP_URL",
	"LDAP_BASEDN",
	"LDAP_USERNAME",
	"LDAP_PASSWORD",
	"LDAP_PAGESIZE",
	"JOURNAL_DSN",
}

// LoadEnvConfig reads configName as an env file. Variables already set in
// the process environment take precedence over the file. An empty
// configName reads the environment only.
func LoadEnvConfig(configName string) (Configuration, error) {
	values := make(map[string]string)
	if configName != "" {
		var err error
		values, err = godotenv.Read(configName)
		if err != nil {
			return Configuration{}, fmt.Errorf("error loading %s: %w", configName, err)
		}
	}
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}
	return parse(values)
}

func parse(values map[string]string) (Configuration, error) {
	cfg := Configuration{
		URL:        values["LDAP_URL"],
		BaseDN:     values["LDAP_BASEDN"],
		Username:   values["LDAP_USERNAME"],
		Password:   values["LDAP_PASSWORD"],
		JournalDSN: values["JOURNAL_DSN"],
	}
	if cfg.URL == "" {
		return Configuration{}, errors.New("LDAP_URL is not set")
	}

	if raw := values["LDAP_PAGESIZE"]; raw != "" {
		pageSize, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return Configuration{}, fmt.Errorf("failed to parse LDAP_PAGESIZE: %w", err)
		}
		cfg.PageSize = uint32(pageSize)
	}
	return cfg, nil
}
