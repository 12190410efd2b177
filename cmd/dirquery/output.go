package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"phonebook/ldapdb/diff"
	"phonebook/ldapdb/directory/query"
	"phonebook/ldapdb/directory/schema"

	"github.com/spf13/cobra"
)

// printer handles table or JSON output.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(cmd *cobra.Command) *printer {
	format, _ := cmd.Flags().GetString("output")
	return &printer{format: format, w: cmd.OutOrStdout()}
}

// json marshals v as indented JSON. Binary values become base64 strings.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// kv prints a key-value detail view.
func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

// rows prints query results, one column per field.
func (p *printer) rows(fields []string, rows []query.Row) error {
	if p.format == "json" {
		if rows == nil {
			rows = []query.Row{}
		}
		return p.json(rows)
	}

	header := append([]string{strings.ToUpper(schema.DNField)}, upper(fields)...)
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, 0, len(fields)+1)
		line = append(line, r.DN())
		for _, f := range fields {
			line = append(line, formatValue(r[f]))
		}
		table = append(table, line)
	}
	p.table(header, table)
	return nil
}

// row prints a single entry as a detail view.
func (p *printer) row(fields []string, r query.Row) error {
	if p.format == "json" {
		return p.json(r)
	}
	pairs := [][2]string{{schema.DNField, r.DN()}}
	for _, f := range fields {
		pairs = append(pairs, [2]string{f, formatValue(r[f])})
	}
	p.kv(pairs)
	return nil
}

// changes prints attribute changes as old and new values.
func (p *printer) changes(changes []diff.AttributeChange) error {
	if p.format == "json" {
		type change struct {
			Attribute string   `json:"attribute"`
			Old       []string `json:"old"`
			New       []string `json:"new"`
		}
		out := make([]change, 0, len(changes))
		for _, c := range changes {
			out = append(out, change{c.Name, diff.Strings(c.Old), diff.Strings(c.New)})
		}
		return p.json(out)
	}

	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, []string{c.Name, formatRaw(c.Old), formatRaw(c.New)})
	}
	p.table([]string{"ATTRIBUTE", "OLD", "NEW"}, rows)
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case []string:
		return strings.Join(v, ", ")
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	}
	return fmt.Sprint(v)
}

func formatRaw(values [][]byte) string {
	return strings.Join(diff.Strings(values), ", ")
}

func upper(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToUpper(f)
	}
	return out
}
