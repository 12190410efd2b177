// Package directory runs compiled queries and mutations against a directory
// server. It is the only package that performs I/O; compiling and result
// processing live in the query and mutation packages.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phonebook/ldapdb/diff"
	"phonebook/ldapdb/directory/mutation"
	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"
	"phonebook/ldapdb/logging"
	"phonebook/ldapdb/snapshot"

	"github.com/go-ldap/ldap/v3"
)

// ErrNotFound is returned by Get and Update when no entry has the DN.
var ErrNotFound = errors.New("entry not found")

type Session struct {
	conn     Conn
	pageSize uint32
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*Session)

// WithPageSize makes searches use the simple paged results control.
// Zero disables paging.
func WithPageSize(size uint32) Option {
	return func(s *Session) { s.pageSize = size }
}

// WithRecorder journals every successful mutation.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func NewSession(conn Conn, opts ...Option) *Session {
	s := &Session{conn: conn}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Default(s.logger).With("component", "directory")
	return s
}

// Find runs q and returns the decoded rows.
func (s *Session) Find(ctx context.Context, q query.Query) ([]query.Row, error) {
	if q.Counting() {
		return nil, fmt.Errorf("%w: use Count for %s queries", query.ErrAggregate, q.Aggregate())
	}
	res, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Count returns the number of entries q matches.
func (s *Session) Count(ctx context.Context, q query.Query) (int, error) {
	res, err := s.run(ctx, q.WithAggregate(query.AggregateCount))
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Get reads the single entry at dn.
func (s *Session) Get(ctx context.Context, m *schema.Model, dn string) (query.Row, error) {
	res, err := s.run(ctx, query.New(m.At(dn)))
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dn)
	}
	return res.Rows[0], nil
}

func (s *Session) run(ctx context.Context, q query.Query) (query.Result, error) {
	req, err := query.Compile(q)
	if err != nil {
		return query.Result{}, err
	}
	entries, err := s.search(ctx, req)
	if err != nil {
		return query.Result{}, err
	}
	res, err := query.Process(q, entries)
	if err != nil {
		return query.Result{}, err
	}
	if res.Dropped > 0 {
		s.logger.DebugContext(ctx, "entries without primary key dropped",
			"model", q.Model().Name, "dropped", res.Dropped)
	}
	return res, nil
}

// search sends req and returns every matching entry. A missing base DN
// yields no entries.
func (s *Session) search(ctx context.Context, req query.SearchRequest) ([]*ldap.Entry, error) {
	s.logger.DebugContext(ctx, "search",
		"base", req.BaseDN, "scope", req.Scope, "filter", req.Filter, "paged", s.pageSize > 0)

	var (
		result *ldap.SearchResult
		err    error
	)
	if s.pageSize > 0 {
		result, err = s.conn.SearchWithPaging(req.LDAP(), s.pageSize)
	} else {
		result, err = s.conn.Search(req.LDAP())
	}
	if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	return result.Entries, nil
}

// Create adds row as a new entry of m and returns its DN.
func (s *Session) Create(ctx context.Context, m *schema.Model, row query.Row) (string, error) {
	req, err := mutation.Insert(m, row)
	if err != nil {
		return "", err
	}
	if err := s.conn.Add(req); err != nil {
		return "", fmt.Errorf("LDAP add %s failed: %w", req.DN, err)
	}
	s.logger.InfoContext(ctx, "entry added", "model", m.Name, "dn", req.DN)

	return req.DN, s.record(ctx, Mutation{
		Operation: OpAdd,
		Model:     m.Name,
		DN:        req.DN,
		Changes:   addChanges(req),
	})
}

// Update rewrites the entry at dn so its model fields match row. Fields
// absent from row are removed. The entry's current state is read first and
// only the differing attributes are sent; nothing is sent when nothing
// differs. The returned changes describe what was modified.
func (s *Session) Update(ctx context.Context, m *schema.Model, dn string, row query.Row) ([]diff.AttributeChange, error) {
	return s.modify(ctx, m, dn, func(snapshot.Attributes) (query.Row, error) {
		return row, nil
	})
}

// Patch changes only the fields present in values and leaves every other
// attribute of the entry alone. An empty value removes the field.
func (s *Session) Patch(ctx context.Context, m *schema.Model, dn string, values query.Row) ([]diff.AttributeChange, error) {
	return s.modify(ctx, m, dn, func(old snapshot.Attributes) (query.Row, error) {
		row := make(query.Row, len(m.Fields))
		for _, f := range m.Fields {
			raw := old.Get(f.Attribute)
			if len(raw) == 0 {
				continue
			}
			v, err := schema.Decode(f, raw)
			if err != nil {
				return nil, err
			}
			row[f.Name] = v
		}
		for k, v := range values {
			row[k] = v
		}
		return row, nil
	})
}

func (s *Session) modify(ctx context.Context, m *schema.Model, dn string, build func(snapshot.Attributes) (query.Row, error)) ([]diff.AttributeChange, error) {
	entries, err := s.search(ctx, query.SearchRequest{
		BaseDN:     dn,
		Scope:      schema.ScopeBase,
		Filter:     "(objectClass=*)",
		Attributes: m.Attributes(),
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dn)
	}
	old := snapshot.FromEntry(entries[0])

	row, err := build(old.Attributes)
	if err != nil {
		return nil, err
	}
	req, changes, err := mutation.Update(m, dn, old.Attributes, row)
	if err != nil {
		return nil, err
	}
	if len(req.Changes) == 0 {
		s.logger.DebugContext(ctx, "entry unchanged", "model", m.Name, "dn", dn)
		return nil, nil
	}
	if err := s.conn.Modify(req); err != nil {
		return nil, fmt.Errorf("LDAP modify %s failed: %w", dn, err)
	}
	s.logger.InfoContext(ctx, "entry modified", "model", m.Name, "dn", dn, "attributes", len(changes))

	return changes, s.record(ctx, Mutation{
		Operation: OpModify,
		Model:     m.Name,
		DN:        dn,
		Changes:   changes,
	})
}

// Rename gives the entry at dn a new primary key value and returns its new
// DN.
func (s *Session) Rename(ctx context.Context, m *schema.Model, dn string, pk any) (string, error) {
	req, newDN, err := mutation.Rename(m, dn, pk)
	if err != nil {
		return "", err
	}
	if err := s.conn.ModifyDN(req); err != nil {
		return "", fmt.Errorf("LDAP rename %s failed: %w", dn, err)
	}
	s.logger.InfoContext(ctx, "entry renamed", "model", m.Name, "dn", dn, "new_dn", newDN)

	return newDN, s.record(ctx, Mutation{
		Operation: OpRename,
		Model:     m.Name,
		DN:        dn,
		NewDN:     newDN,
	})
}

// Delete removes every entry q matches and returns how many were deleted.
// Ordering and slicing on q are ignored. Deletion stops at the first
// failure.
func (s *Session) Delete(ctx context.Context, q query.Query) (int, error) {
	req, err := mutation.DeleteSearch(q)
	if err != nil {
		return 0, err
	}
	entries, err := s.search(ctx, req)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, del := range mutation.Delete(entries) {
		if err := s.conn.Del(del); err != nil {
			return deleted, fmt.Errorf("LDAP delete %s failed: %w", del.DN, err)
		}
		deleted++
		s.logger.InfoContext(ctx, "entry deleted", "model", q.Model().Name, "dn", del.DN)

		if err := s.record(ctx, Mutation{Operation: OpDelete, Model: q.Model().Name, DN: del.DN}); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// record journals m. The directory write has already happened, so a
// failure here is reported without undoing it.
func (s *Session) record(ctx context.Context, m Mutation) error {
	if s.recorder == nil {
		return nil
	}
	if m.Time.IsZero() {
		m.Time = time.Now().UTC()
	}
	if err := s.recorder.Record(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "journal write failed", "operation", m.Operation, "dn", m.DN, "error", err)
		return fmt.Errorf("journal %s %s: %w", m.Operation, m.DN, err)
	}
	return nil
}
