package directory

import (
	"fmt"
	"log/slog"

	"phonebook/ldapdb/logging"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of a directory connection the Session drives.
// *ldap.Conn satisfies it.
type Conn interface {
	Search(*ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(*ldap.SearchRequest, uint32) (*ldap.SearchResult, error)
	Add(*ldap.AddRequest) error
	Modify(*ldap.ModifyRequest) error
	ModifyDN(*ldap.ModifyDNRequest) error
	Del(*ldap.DelRequest) error
}

var _ Conn = (*ldap.Conn)(nil)

// Dial connects to url and binds as username. An empty username performs
// an anonymous bind.
func Dial(url, username, password string, logger *slog.Logger) (*ldap.Conn, error) {
	logger = logging.Default(logger)

	conn, err := ldap.DialURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if username == "" {
		err = conn.UnauthenticatedBind("")
	} else {
		err = conn.Bind(username, password)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind to LDAP server: %w", err)
	}

	// Not every server implements the WhoAmI extended operation.
	if res, err := conn.WhoAmI(nil); err == nil {
		logger.Info("authenticated", "url", url, "authzid", res.AuthzID)
	} else {
		logger.Info("bound", "url", url, "username", username)
	}
	return conn, nil
}
