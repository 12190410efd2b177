package main

import (
	"errors"
	"fmt"
	"strings"

	"phonebook/ldapdb/directory/params"
	"phonebook/ldapdb/directory/schema"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models [MODEL]",
		Short: "List models, or the fields of one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry := newRegistry(cfg.BaseDN)
			p := newPrinter(cmd)

			if len(args) == 0 {
				var rows [][]string
				for _, name := range registry.Names() {
					m, _ := registry.Lookup(name)
					rows = append(rows, []string{m.Name, m.BaseDN, strings.Join(m.ObjectClasses, ", "), m.PrimaryKey})
				}
				p.table([]string{"MODEL", "BASE", "OBJECT CLASSES", "PRIMARY KEY"}, rows)
				return nil
			}

			m, err := registry.Lookup(args[0])
			if err != nil {
				return err
			}
			var rows [][]string
			for _, f := range m.Fields {
				lookups := make([]string, 0, len(f.Kind.Lookups()))
				for _, l := range f.Kind.Lookups() {
					lookups = append(lookups, string(l))
				}
				required := ""
				if f.Required || f.Name == m.PrimaryKey {
					required = "yes"
				}
				rows = append(rows, []string{f.Name, f.Attribute, f.Kind.String(), required, strings.Join(lookups, " ")})
			}
			p.table([]string{"FIELD", "ATTRIBUTE", "KIND", "REQUIRED", "LOOKUPS"}, rows)
			return nil
		},
	}
}

func newSearchCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search MODEL [field__lookup=value...]",
		Short: "Search entries of a model",
		Long: "Search entries of a model. Filters are ANDed; write field__lookup!=value to negate one.\n" +
			"Lookups: exact (default), contains, icontains, startswith, endswith, in, gte, lte.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			order, _ := cmd.Flags().GetStringSlice("order")
			slice, _ := cmd.Flags().GetString("slice")
			fields, _ := cmd.Flags().GetStringSlice("fields")

			q, err := params.BuildQuery(m, args[1:], order, slice, fields)
			if err != nil {
				return err
			}
			rows, err := a.session.Find(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				fields = fieldNames(m)
			}
			return newPrinter(cmd).rows(fields, rows)
		},
	}
	cmd.Flags().StringSlice("order", nil, "order by field, prefix with - for descending (repeatable)")
	cmd.Flags().String("slice", "", "window of the ordered result as low:high")
	cmd.Flags().StringSlice("fields", nil, "fields to fetch (default: all)")
	return cmd
}

func newCountCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "count MODEL [field__lookup=value...]",
		Short: "Count entries of a model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			q, err := params.BuildQuery(m, args[1:], nil, "", nil)
			if err != nil {
				return err
			}
			n, err := a.session.Count(cmd.Context(), q)
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			if p.format == "json" {
				return p.json(map[string]int{"count": n})
			}
			_, err = fmt.Fprintln(p.w, n)
			return err
		},
	}
}

func newGetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get MODEL DN",
		Short: "Show one entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			row, err := a.session.Get(cmd.Context(), m, args[1])
			if err != nil {
				return err
			}
			return newPrinter(cmd).row(fieldNames(m), row)
		},
	}
}

func newCreateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "create MODEL field=value...",
		Short: "Create an entry",
		Long:  "Create an entry. Repeat a list field to give several values; prefix a binary value with @ to read it from a file.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			row, err := params.ParseRow(m, args[1:])
			if err != nil {
				return err
			}
			dn, err := a.session.Create(cmd.Context(), m, row)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", dn)
			return err
		},
	}
}

func newUpdateCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update MODEL DN field=value...",
		Short: "Change fields of an entry",
		Long: "Change fields of an entry. Only the given fields are changed unless --replace is set,\n" +
			"in which case every field left out is removed. An empty value removes a field.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			dn := args[1]
			row, err := params.ParseRow(m, args[2:])
			if err != nil {
				return err
			}

			delete(row, schema.DNField)

			update := a.session.Patch
			if replace, _ := cmd.Flags().GetBool("replace"); replace {
				update = a.session.Update
			}
			changes, err := update(cmd.Context(), m, dn, row)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No changes")
				return err
			}
			return newPrinter(cmd).changes(changes)
		},
	}
	cmd.Flags().Bool("replace", false, "remove every field not given")
	return cmd
}

func newRenameCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rename MODEL DN NEW_PRIMARY_KEY",
		Short: "Give an entry a new primary key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			var pk any = args[2]
			if m.PrimaryField().Kind == schema.Integer {
				if pk, err = params.ParseInteger(args[2]); err != nil {
					return err
				}
			}
			newDN, err := a.session.Rename(cmd.Context(), m, args[1], pk)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Renamed to %s\n", newDN)
			return err
		},
	}
}

func newDeleteCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete MODEL [field__lookup=value...]",
		Short: "Delete the entries matching the filters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if len(args) == 1 && !all {
				return errors.New("refusing to delete every entry without --all")
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.model(args[0])
			if err != nil {
				return err
			}
			q, err := params.BuildQuery(m, args[1:], nil, "", nil)
			if err != nil {
				return err
			}
			n, err := a.session.Delete(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("deleted %d entries before failing: %w", n, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries\n", n)
			return err
		},
	}
	cmd.Flags().Bool("all", false, "allow deleting without filters")
	return cmd
}

func newHistoryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history DN",
		Short: "Show the journaled mutations of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.journal == nil {
				return errors.New("JOURNAL_DSN is not configured")
			}
			records, err := a.journal.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			p := newPrinter(cmd)
			if p.format == "json" {
				return p.json(records)
			}
			var rows [][]string
			for _, r := range records {
				changes, err := r.AttributeChanges()
				if err != nil {
					return err
				}
				names := make([]string, 0, len(changes))
				for _, c := range changes {
					names = append(names, c.Name)
				}
				rows = append(rows, []string{
					r.RecordedAt.Format("2006-01-02 15:04:05"),
					r.Operation,
					r.Model,
					r.NewDN,
					strings.Join(names, ", "),
				})
			}
			p.table([]string{"TIME", "OPERATION", "MODEL", "NEW DN", "ATTRIBUTES"}, rows)
			return nil
		},
	}
}

func fieldNames(m *schema.Model) []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}
