package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/itohio/loadrig/pkg/catalog"
	"github.com/itohio/loadrig/pkg/clock"
	"github.com/itohio/loadrig/pkg/config"
	"github.com/itohio/loadrig/pkg/logging"
	"github.com/itohio/loadrig/pkg/panel"
	"github.com/itohio/loadrig/pkg/rig"
	"github.com/itohio/loadrig/pkg/sensor"
	"github.com/itohio/loadrig/pkg/storage"
	"github.com/itohio/loadrig/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "loadrig",
		Short:         "Load-cell test rig recorder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Configuration file path")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newSessionsCmd(&configPath))
	root.AddCommand(newPortsCmd())
	root.AddCommand(newTareCmd(&configPath))
	root.AddCommand(newConfigCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		port     string
		mock     bool
		headless bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the rig with the operator panel",
		Long: "Run the rig with the operator panel. With --headless a single session\n" +
			"is recorded immediately and the command exits once it has drained.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Serial.Port = port
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.File, headless)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, mock, headless, logger)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use a simulated load cell instead of the serial bridge")
	cmd.Flags().BoolVar(&headless, "headless", false, "Record one session without the panel, logging to stderr")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, mock, headless bool, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clk := clock.NewSystem()

	reader, closeReader, err := openReader(cfg, mock, clk, logger)
	if err != nil {
		return err
	}
	defer closeReader()

	logCapacity(cfg, logger)

	controls := panel.New(panel.DefaultHold, clk)
	done := make(chan struct{})
	var once sync.Once
	opts := rig.Options{
		Reader:        reader,
		Controls:      controls,
		Indicator:     controls,
		OnSessionDone: func() { once.Do(func() { close(done) }) },
	}

	if cfg.Storage.Catalog != "" {
		cat, err := catalog.Open(cfg.Storage.Catalog, logger)
		if err != nil {
			return err
		}
		defer cat.Close()
		opts.Sink = cat
	}

	if cfg.Telemetry.Enabled {
		sender, err := telemetry.Dial(cfg.Telemetry, clk, logger)
		if err != nil {
			return err
		}
		opts.Telemetry = sender
	}

	r, err := rig.New(cfg, clk, opts, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var rigErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		rigErr = r.Run(ctx)
	}()

	if headless {
		controls.Press(panel.KeyRecord)
		select {
		case <-done:
		case <-ctx.Done():
		}
	} else {
		model := panel.NewModel(controls, r.Controller(), r.Monitor(), cfg.Sampling.MaxDuration)
		if err := panel.Run(ctx, model); err != nil && !errors.Is(err, context.Canceled) {
			cancel()
			wg.Wait()
			return err
		}
	}

	cancel()
	wg.Wait()

	if rigErr != nil && !errors.Is(rigErr, context.Canceled) {
		return rigErr
	}
	return nil
}

// openReader connects the load-cell source and returns a function releasing it.
func openReader(cfg *config.Config, mock bool, clk clock.Clock, logger *zap.Logger) (sensor.Reader, func(), error) {
	if mock {
		logger.Info("[sensor] using simulated load cell")
		return sensor.NewMock(&cfg.Mock, clk, uint64(time.Now().UnixNano())), func() {}, nil
	}

	s := sensor.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, logger)
	if err := s.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Serial.Port, err)
	}
	logger.Info("[sensor] connected", zap.String("portName", cfg.Serial.Port), zap.Int("baudRate", cfg.Serial.BaudRate))

	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("[sensor] error closing port", zap.Error(err))
		}
	}, nil
}

// logCapacity reports how long the storage can record at the configured rate.
func logCapacity(cfg *config.Config, logger *zap.Logger) {
	free, err := storage.FreeSpace(cfg.Storage.Dir)
	if err != nil {
		logger.Warn("[storage] could not query free space", zap.Error(err), zap.String("dir", cfg.Storage.Dir))
		return
	}

	capacity := storage.EstimateCapacity(free, cfg.Sampling.Interval)
	logger.Info("[storage] capacity",
		zap.String("dir", cfg.Storage.Dir),
		zap.Uint64("freeBytes", free),
		zap.Duration("recording", capacity),
		zap.Int64("sessions", int64(capacity/cfg.Sampling.MaxDuration)),
	)
}
