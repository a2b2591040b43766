package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/itohio/loadrig/pkg/catalog"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/sensor"
	"github.com/spf13/cobra"
)

func newSessionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Catalog == "" {
				return fmt.Errorf("session catalog is disabled in %s", *configPath)
			}

			cat, err := catalog.Open(cfg.Storage.Catalog, nil)
			if err != nil {
				return err
			}
			defer cat.Close()

			entries, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}
			total, err := cat.Count(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "STARTED\tFILE\tROWS\tDURATION\tSTATUS")
			for _, e := range entries {
				status := "ok"
				if e.Failed {
					status = fmt.Sprintf("failed (%d dropped)", e.Dropped)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					e.StartedAt.Local().Format(time.DateTime),
					e.File,
					e.Rows,
					e.Duration().Round(time.Millisecond),
					status,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d sessions\n", total)
			return err
		},
	}
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := sensor.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p.Name)
			}
			return nil
		},
	}
}
