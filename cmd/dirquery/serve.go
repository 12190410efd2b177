package main

import (
	"log/slog"
	"os"
	"os/signal"

	"phonebook/ldapdb/web"

	"github.com/spf13/cobra"
)

func newServeCmd(open opener, logger func() *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := web.Config{
				Registry: a.registry,
				Session:  a.session,
				Addr:     addr,
				Logger:   logger(),
			}
			if a.journal != nil {
				cfg.History = a.journal
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()
			return web.NewServer(cfg).Start(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address (host:port)")
	return cmd
}
