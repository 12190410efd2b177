package mutation

import (
	"phonebook/ldapdb/diff"
	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"
	"phonebook/ldapdb/snapshot"

	"github.com/go-ldap/ldap/v3"
)

// Update compiles the difference between the entry's current attributes and
// a new row into a Modify request.
//
// Only model attributes are compared and every row key must name a model
// field. Changed attributes are replaced; an
// attribute present in old but absent or empty in row is deleted. Unchanged
// attributes are not sent at all. A request without changes is returned
// when nothing differs, so callers can skip the round trip.
func Update(m *schema.Model, dn string, old snapshot.Attributes, row query.Row) (*ldap.ModifyRequest, []diff.AttributeChange, error) {
	if err := checkFields(m, row); err != nil {
		return nil, nil, err
	}
	pk := m.PrimaryField()

	prev := make(map[string][][]byte)
	curr := make(map[string][][]byte)
	for _, f := range m.Fields {
		oldValues := old.Get(f.Attribute)
		v, inRow := row[f.Name]

		// The RDN is only touched by a rename.
		if f.Name == pk.Name && !inRow {
			continue
		}

		if len(oldValues) > 0 {
			prev[f.Attribute] = oldValues
		}
		if !inRow || v == nil {
			continue
		}
		values, err := schema.Encode(f, v)
		if err != nil {
			return nil, nil, err
		}
		if !schema.IsEmpty(values) {
			curr[f.Attribute] = values
		}
	}

	changes := diff.FindChanges(prev, curr)

	req := ldap.NewModifyRequest(dn, nil)
	for _, c := range changes {
		if c.Name == pk.Attribute && c.Old != nil {
			return nil, nil, ErrPrimaryKeyChanged
		}
		if c.Removed() {
			req.Delete(c.Name, nil)
			continue
		}
		req.Replace(c.Name, toStrings(c.New))
	}
	return req, changes, nil
}
