// Command dirquery searches and edits the phonebook directory from the
// command line.
//
// The base logger is created here and injected into every component.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"phonebook/ldapdb/config"
	"phonebook/ldapdb/database"
	"phonebook/ldapdb/directory"
	"phonebook/ldapdb/directory/schema"
	"phonebook/ldapdb/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logger *slog.Logger

	cmd := &cobra.Command{
		Use:           "dirquery",
		Short:         "Query and edit the phonebook directory",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			asJSON, _ := cmd.Flags().GetBool("log-json")
			var err error
			logger, err = logging.New(os.Stderr, level, asJSON)
			return err
		},
	}

	cmd.PersistentFlags().String("env", ".env", "env file holding the LDAP_* settings")
	cmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")
	cmd.PersistentFlags().Bool("log-json", false, "log as JSON")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	session := func(cmd *cobra.Command) (*app, error) {
		return openApp(cmd.Context(), cmd, logger)
	}

	cmd.AddCommand(
		newModelsCmd(),
		newSearchCmd(session),
		newCountCmd(session),
		newGetCmd(session),
		newCreateCmd(session),
		newUpdateCmd(session),
		newRenameCmd(session),
		newDeleteCmd(session),
		newHistoryCmd(session),
		newServeCmd(session, func() *slog.Logger { return logger }),
	)
	return cmd
}

// app bundles what a command needs to talk to the directory.
type app struct {
	registry *schema.Registry
	session  *directory.Session
	journal  *database.Journal
	close    func()
}

type opener func(cmd *cobra.Command) (*app, error)

// loadConfig reads the --env file. The default file is optional.
func loadConfig(cmd *cobra.Command) (config.Configuration, error) {
	envFile, _ := cmd.Flags().GetString("env")
	if _, err := os.Stat(envFile); err != nil && !cmd.Flags().Changed("env") {
		envFile = ""
	}
	return config.LoadEnvConfig(envFile)
}

// newRegistry returns the built-in models rooted at baseDN.
func newRegistry(baseDN string) *schema.Registry {
	registry := schema.NewRegistry()
	registry.Rebase(baseDN)
	return registry
}

func openApp(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	registry := newRegistry(cfg.BaseDN)

	conn, err := directory.Dial(cfg.URL, cfg.Username, cfg.Password, logger)
	if err != nil {
		return nil, err
	}

	a := &app{registry: registry}
	opts := []directory.Option{
		directory.WithPageSize(cfg.PageSize),
		directory.WithLogger(logger),
	}
	if cfg.JournalDSN != "" {
		a.journal, err = database.Open(ctx, cfg.JournalDSN, logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		opts = append(opts, directory.WithRecorder(a.journal))
	}

	a.session = directory.NewSession(conn, opts...)
	a.close = func() {
		conn.Close()
		if a.journal != nil {
			a.journal.Close()
		}
	}
	return a, nil
}

func (a *app) model(name string) (*schema.Model, error) {
	m, err := a.registry.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w (known models: %v)", err, a.registry.Names())
	}
	return m, nil
}
