package mutation

import (
	"phonebook/ldapdb/directory/query"

	"github.com/go-ldap/ldap/v3"
)

// noAttributes asks the server for DNs only (RFC 4511 section 4.5.1.8).
const noAttributes = "1.1"

// DeleteSearch compiles the search that finds the entries q would delete.
func DeleteSearch(q query.Query) (query.SearchRequest, error) {
	req, err := query.Compile(q.WithAggregate(query.AggregateNone))
	if err != nil {
		return query.SearchRequest{}, err
	}
	req.Attributes = []string{noAttributes}
	return req, nil
}

// Delete emits one Delete request per matched entry. Entries below a
// deleted DN are not touched; a server refuses to delete non-leaf entries,
// and removing children first is left to the caller.
func Delete(entries []*ldap.Entry) []*ldap.DelRequest {
	reqs := make([]*ldap.DelRequest, 0, len(entries))
	for _, e := range entries {
		reqs = append(reqs, ldap.NewDelRequest(e.DN, nil))
	}
	return reqs
}
