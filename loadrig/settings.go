package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/logging"
	"github.com/itohio/loadrig/pkg/sensor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(configPath *string) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage the configuration file"}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(*configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", *configPath)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Default().Save(*configPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", *configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cfgCmd.AddCommand(initCmd, showCmd)
	return cfgCmd
}

func newTareCmd(configPath *string) *cobra.Command {
	var (
		port    string
		mock    bool
		samples int
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "tare",
		Short: "Measure the zero offset of the unloaded cell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Serial.Port = port
			}
			if samples <= 0 {
				samples = cfg.Sensor.TareSamples
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.File, true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			clk := clock.NewSystem()
			reader, closeReader, err := openReader(cfg, mock, clk, logger)
			if err != nil {
				return err
			}
			defer closeReader()

			offset, err := sensor.Tare(reader, samples, clk)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "offset %d (%d samples)\n", offset, samples)

			if save {
				cfg.Sensor.Offset = offset
				if err := cfg.Save(*configPath); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", *configPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial port override")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use a simulated load cell")
	cmd.Flags().IntVarP(&samples, "samples", "n", 0, "Readings to average (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "Store the offset in the configuration file")
	return cmd
}
