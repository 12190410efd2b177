package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"phonebook/ldapdb/diff"
	"phonebook/ldapdb/directory"
	"phonebook/ldapdb/directory/params"
	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Response types for JSON serialization

type FieldResponse struct {
	Name      string   `json:"name"`
	Attribute string   `json:"attribute"`
	Kind      string   `json:"kind"`
	Required  bool     `json:"required"`
	Lookups   []string `json:"lookups"`
}

type ModelResponse struct {
	Name          string          `json:"name"`
	BaseDN        string          `json:"base_dn"`
	Scope         string          `json:"scope"`
	ObjectClasses []string        `json:"object_classes"`
	PrimaryKey    string          `json:"primary_key"`
	Fields        []FieldResponse `json:"fields"`
}

type EntryListResponse struct {
	Entries []query.Row `json:"entries"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

type AttributeChange struct {
	Attribute string   `json:"attribute"`
	OldValue  []string `json:"old_value"`
	NewValue  []string `json:"new_value"`
}

type MutationResponse struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	Model     string            `json:"model"`
	DN        string            `json:"dn"`
	NewDN     string            `json:"new_dn,omitempty"`
	Timestamp string            `json:"timestamp"`
	Changes   []AttributeChange `json:"changes"`
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDirectoryError maps compile and lookup failures to client errors;
// everything else is the directory's fault.
func (s *Server) writeDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrCompile), errors.Is(err, schema.ErrFieldType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "directory request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "Directory request failed")
	}
}

func (s *Server) model(w http.ResponseWriter, r *http.Request) (*schema.Model, bool) {
	m, err := s.registry.Lookup(r.PathValue("model"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return m, true
}

// listParam splits comma separated values, e.g. fields=cn,mail.
func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Handlers

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	models := make([]ModelResponse, 0, len(names))
	for _, name := range names {
		m, _ := s.registry.Lookup(name)
		resp := ModelResponse{
			Name:          m.Name,
			BaseDN:        m.BaseDN,
			Scope:         m.Scope.String(),
			ObjectClasses: m.ObjectClasses,
			PrimaryKey:    m.PrimaryKey,
			Fields:        make([]FieldResponse, 0, len(m.Fields)),
		}
		for _, f := range m.Fields {
			lookups := make([]string, 0, len(f.Kind.Lookups()))
			for _, l := range f.Kind.Lookups() {
				lookups = append(lookups, string(l))
			}
			resp.Fields = append(resp.Fields, FieldResponse{
				Name:      f.Name,
				Attribute: f.Attribute,
				Kind:      f.Kind.String(),
				Required:  f.Required || f.Name == m.PrimaryKey,
				Lookups:   lookups,
			})
		}
		models = append(models, resp)
	}
	writeJSON(w, http.StatusOK, models)
}

// handleSearch answers GET /api/models/{model}/entries. Filters are
// repeated q parameters in field__lookup=value form.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	m, ok := s.model(w, r)
	if !ok {
		return
	}
	v := r.URL.Query()

	limit := defaultLimit
	offset := 0
	if l := v.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}
	if o := v.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	q, err := params.BuildQuery(m, v["q"], listParam(v["order"]), "", listParam(v["fields"]))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.session.Find(r.Context(), q.Slice(offset, offset+limit))
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	if rows == nil {
		rows = []query.Row{}
	}

	writeJSON(w, http.StatusOK, EntryListResponse{
		Entries: rows,
		Limit:   limit,
		Offset:  offset,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	m, ok := s.model(w, r)
	if !ok {
		return
	}
	q, err := params.BuildQuery(m, r.URL.Query()["q"], nil, "", nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.session.Count(r.Context(), q)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	m, ok := s.model(w, r)
	if !ok {
		return
	}
	dn := r.URL.Query().Get("dn")
	if dn == "" {
		writeError(w, http.StatusBadRequest, "Missing dn parameter")
		return
	}
	row, err := s.session.Get(r.Context(), m, dn)
	if err != nil {
		s.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "Mutation journal is not configured")
		return
	}
	dn := r.URL.Query().Get("dn")
	if dn == "" {
		writeError(w, http.StatusBadRequest, "Missing dn parameter")
		return
	}

	records, err := s.history.History(r.Context(), dn)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history query failed", "dn", dn, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	out := make([]MutationResponse, 0, len(records))
	for _, rec := range records {
		changes, err := rec.AttributeChanges()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to decode history")
			return
		}
		resp := MutationResponse{
			ID:        rec.MutationID.String(),
			Operation: rec.Operation,
			Model:     rec.Model,
			DN:        rec.DN,
			NewDN:     rec.NewDN,
			Timestamp: rec.RecordedAt.UTC().Format(time.RFC3339),
			Changes:   make([]AttributeChange, 0, len(changes)),
		}
		for _, c := range changes {
			resp.Changes = append(resp.Changes, AttributeChange{
				Attribute: c.Name,
				OldValue:  diff.Strings(c.Old),
				NewValue:  diff.Strings(c.New),
			})
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}
