package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phonebook/ldapdb/database"
	"phonebook/ldapdb/directory"
	"phonebook/ldapdb/directory/schema"
	"phonebook/ldapdb/web"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// stubConn answers every search with the same entries.
type stubConn struct {
	directory.Conn
	entries []*ldap.Entry
	err     error
}

func (c *stubConn) Search(*ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &ldap.SearchResult{Entries: c.entries}, nil
}

type stubHistory []database.MutationRecord

func (h stubHistory) History(context.Context, string) ([]database.MutationRecord, error) {
	return h, nil
}

func tag(name string) *ldap.Entry {
	return ldap.NewEntry("cn="+name+",ou=tags,dc=mozillians,dc=org", map[string][]string{
		"cn":     {name},
		"member": {"uid=a", "uid=b"},
	})
}

func newServer(conn *stubConn, history web.History) *web.Server {
	return web.NewServer(web.Config{
		Registry: schema.NewRegistry(),
		Session:  directory.NewSession(conn),
		History:  history,
	})
}

func get(t *testing.T, s *web.Server, url string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return rec.Code
}

func TestListModels(t *testing.T) {
	s := newServer(&stubConn{}, nil)

	var models []web.ModelResponse
	if code := get(t, s, "/api/models", &models); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(models) != 3 || models[0].Name != "account" || models[2].Name != "tag" {
		t.Fatalf("unexpected models: %+v", models)
	}
	if models[2].Fields[0].Name != "name" || !models[2].Fields[0].Required {
		t.Errorf("unexpected tag fields: %+v", models[2].Fields)
	}
}

func TestSearch(t *testing.T) {
	s := newServer(&stubConn{entries: []*ldap.Entry{tag("alpha"), tag("zeta"), tag("mid")}}, nil)

	var resp struct {
		Entries []map[string]any `json:"entries"`
		Limit   int              `json:"limit"`
	}
	if code := get(t, s, "/api/models/tag/entries?order=-name&limit=2&fields=name", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(resp.Entries) != 2 || resp.Limit != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Entries[0]["name"] != "zeta" || resp.Entries[1]["name"] != "mid" {
		t.Errorf("unexpected order: %v", resp.Entries)
	}
	if _, ok := resp.Entries[0]["members"]; ok {
		t.Error("fields outside the projection should be omitted")
	}
}

func TestSearch_Errors(t *testing.T) {
	s := newServer(&stubConn{entries: []*ldap.Entry{tag("alpha")}}, nil)

	tests := map[string]int{
		"/api/models/nope/entries":                          http.StatusNotFound,
		"/api/models/tag/entries?q=name__gte=x":             http.StatusBadRequest,
		"/api/models/tag/entries?q=colour=red":              http.StatusBadRequest,
		"/api/models/tag/entries?order=colour":              http.StatusBadRequest,
		"/api/models/tag/entries?q=name__in=a,b":            http.StatusOK,
		"/api/models/tag/count?q=members__contains=uid%3Da": http.StatusOK,
		"/api/models/tag/count?q=members=uid%3Da":           http.StatusBadRequest,
	}
	for url, want := range tests {
		if code := get(t, s, url, nil); code != want {
			t.Errorf("%s: got %d, want %d", url, code, want)
		}
	}

	broken := newServer(&stubConn{err: ldap.NewError(ldap.LDAPResultUnavailable, errors.New("down"))}, nil)
	if code := get(t, broken, "/api/models/tag/entries", nil); code != http.StatusBadGateway {
		t.Errorf("directory failure: got %d", code)
	}
}

func TestCount(t *testing.T) {
	s := newServer(&stubConn{entries: []*ldap.Entry{tag("alpha"), tag("zeta")}}, nil)

	var resp map[string]int
	if code := get(t, s, "/api/models/tag/count", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp["count"] != 2 {
		t.Errorf("count: got %d", resp["count"])
	}
}

func TestGetEntry(t *testing.T) {
	s := newServer(&stubConn{entries: []*ldap.Entry{tag("alpha")}}, nil)

	var row map[string]any
	if code := get(t, s, "/api/models/tag/entry?dn=cn%3Dalpha,ou%3Dtags,dc%3Dmozillians,dc%3Dorg", &row); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if row["name"] != "alpha" || row["dn"] != "cn=alpha,ou=tags,dc=mozillians,dc=org" {
		t.Errorf("unexpected row: %v", row)
	}

	if code := get(t, s, "/api/models/tag/entry", nil); code != http.StatusBadRequest {
		t.Errorf("missing dn: got %d", code)
	}

	empty := newServer(&stubConn{}, nil)
	if code := get(t, empty, "/api/models/tag/entry?dn=cn%3Dx", nil); code != http.StatusNotFound {
		t.Errorf("missing entry: got %d", code)
	}
}

func TestHistory(t *testing.T) {
	if code := get(t, newServer(&stubConn{}, nil), "/api/history?dn=cn%3Dx", nil); code != http.StatusNotImplemented {
		t.Errorf("without journal: got %d", code)
	}

	history := stubHistory{{
		MutationID: uuid.New(),
		Operation:  "modify",
		Model:      "tag",
		DN:         "cn=x",
		RecordedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Changes: []database.ChangeRecord{
			{AttributeName: "description", OldValue: []byte(`["old"]`), NewValue: []byte(`["new"]`)},
		},
	}}
	s := newServer(&stubConn{}, history)

	var resp []web.MutationResponse
	if code := get(t, s, "/api/history?dn=cn%3Dx", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(resp) != 1 || resp[0].Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected history: %+v", resp)
	}
	c := resp[0].Changes[0]
	if c.Attribute != "description" || c.OldValue[0] != "old" || c.NewValue[0] != "new" {
		t.Errorf("unexpected change: %+v", c)
	}

	if code := get(t, s, "/api/history", nil); code != http.StatusBadRequest {
		t.Errorf("missing dn: got %d", code)
	}
}
