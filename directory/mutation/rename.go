package mutation

import (
	"phonebook/ldapdb/directory/schema"

	"github.com/go-ldap/ldap/v3"
)

// Rename compiles a primary key change into a ModifyDN request and returns
// the entry's new DN. The old RDN value is removed from the entry.
func Rename(m *schema.Model, dn string, pk any) (*ldap.ModifyDNRequest, string, error) {
	rdn, err := m.RDN(pk)
	if err != nil {
		return nil, "", err
	}

	newDN := rdn
	if parent := parentDN(dn); parent != "" {
		newDN = rdn + "," + parent
	}
	return ldap.NewModifyDNRequest(dn, rdn, true, ""), newDN, nil
}

// parentDN strips the first RDN, honouring backslash-escaped commas.
func parentDN(dn string) string {
	escaped := false
	for i := 0; i < len(dn); i++ {
		switch {
		case escaped:
			escaped = false
		case dn[i] == '\\':
			escaped = true
		case dn[i] == ',':
			return dn[i+1:]
		}
	}
	return ""
}
