package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/config"
	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
	"github.com/nextlevelbuilder/clawman/internal/genconfig"
	"github.com/nextlevelbuilder/clawman/internal/logs"
	"github.com/nextlevelbuilder/clawman/internal/oauthflow"
	"github.com/nextlevelbuilder/clawman/internal/server"
	"github.com/nextlevelbuilder/clawman/internal/state"
	"github.com/nextlevelbuilder/clawman/internal/telegram"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the manager HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Manager.Token == "" {
		fmt.Fprintln(os.Stderr, "no manager token configured: set manager.token or OPENCLAW_MANAGER_TOKEN")
		os.Exit(1)
	}

	states := state.New(cfg.Manager.DataDir,
		state.WithProjector(genconfig.NewWriter(cfg.Manager.DataDir)))
	audits := audit.New(cfg.Manager.DataDir)
	gateway := gatewayctl.New(cfg.Gateway.Bin)
	handshake := oauthflow.New(states)
	validator := telegram.NewValidator()

	srv := server.New(cfg, states, gateway, audits, handshake, validator,
		logs.ResolveGatewayLogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
