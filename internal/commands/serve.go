package commands

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/alert"
	"github.com/dwsmith1983/testgate/internal/command"
	"github.com/dwsmith1983/testgate/internal/config"
	"github.com/dwsmith1983/testgate/internal/registry"
	"github.com/dwsmith1983/testgate/internal/server"
	"github.com/dwsmith1983/testgate/internal/server/handlers"
	"github.com/dwsmith1983/testgate/internal/telemetry"
)

const defaultAddr = ":8080"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		f    commonFlags
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the testgate HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f, addr)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(f commonFlags, addrFlag string) error {
	cfg, logger, err := f.setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}

	// Store
	st, err := newStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	// Alerts
	dispatcher, err := alert.NewDispatcher(ctx, cfg.Alerts, alert.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating alert dispatcher: %w", err)
	}

	// Gate
	jobs, opts := config.Resolve(cfg)
	g, err := newGate(opts, command.NewShellRunner(), st, dispatcher, logger)
	if err != nil {
		return err
	}

	// Server
	srvCfg := server.Config{Addr: defaultAddr}
	if cfg.Server != nil {
		if cfg.Server.Addr != "" {
			srvCfg.Addr = cfg.Server.Addr
		}
		srvCfg.APIKey = cfg.Server.APIKey
		srvCfg.MaxRequestBody = cfg.Server.MaxRequestBody
	}
	if addrFlag != "" {
		srvCfg.Addr = addrFlag
	}
	srv := server.New(srvCfg, g, st, registry.New(), handlers.Project{
		Workflow:        cfg.Workflow,
		Jobs:            jobs,
		Secrets:         cfg.Secrets,
		DependenciesKey: dependenciesKey(cfg),
	}, logger)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer ossignal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		_ = st.Stop(shutdownCtx)
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
		color.Green("Server stopped gracefully")
		return nil
	}
}
