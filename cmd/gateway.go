package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/config"
	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
)

func gatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Control the OpenClaw gateway process",
	}
	cmd.AddCommand(gatewayActionCmd("status", "Show gateway runtime status", "", nil))
	cmd.AddCommand(gatewayActionCmd("start", "Start the gateway", audit.EventGatewayStart,
		func(ctx context.Context, gw *gatewayctl.Controller) gatewayctl.State { return gw.Start(ctx) }))
	cmd.AddCommand(gatewayActionCmd("stop", "Stop the gateway", audit.EventGatewayStop,
		func(ctx context.Context, gw *gatewayctl.Controller) gatewayctl.State { return gw.Stop(ctx) }))
	cmd.AddCommand(gatewayActionCmd("restart", "Restart the gateway", audit.EventGatewayRestart,
		func(ctx context.Context, gw *gatewayctl.Controller) gatewayctl.State { return gw.Restart(ctx) }))
	return cmd
}

func gatewayActionCmd(use, short string, event audit.EventType,
	action func(context.Context, *gatewayctl.Controller) gatewayctl.State) *cobra.Command {

	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				slog.Error("failed to load config", "error", err)
				os.Exit(1)
			}

			gw := gatewayctl.New(cfg.Gateway.Bin)
			var st gatewayctl.State
			if action == nil {
				st = gw.Current(cmd.Context())
			} else {
				st = action(cmd.Context(), gw)
				audit.New(cfg.Manager.DataDir).SafeAppend(audit.Event{
					Type:    event,
					Actor:   audit.ActorCLI,
					Details: map[string]interface{}{"status": st.Status},
				})
			}

			printGatewayState(st)
			if st.Status == gatewayctl.StatusError {
				os.Exit(1)
			}
		},
	}
}

func printGatewayState(st gatewayctl.State) {
	fmt.Printf("Gateway: %s\n", st.Status)
	if st.LastError != nil {
		fmt.Printf("Error:   %s\n", st.LastError.Message)
	}
}
