package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/config"
	"github.com/nextlevelbuilder/clawman/internal/diagnostics"
	"github.com/nextlevelbuilder/clawman/internal/gatewayctl"
	"github.com/nextlevelbuilder/clawman/internal/logs"
	"github.com/nextlevelbuilder/clawman/internal/state"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check gateway and manager health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) {
	setupLogging()

	fmt.Println("clawman doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Data dir: %s\n", cfg.Manager.DataDir)
	fmt.Println()

	runner := &diagnostics.Runner{
		Gateway:     gatewayctl.New(cfg.Gateway.Bin),
		States:      state.New(cfg.Manager.DataDir),
		LogResolver: logs.ResolveGatewayLogFile,
	}
	res := runner.Run(cmd.Context())

	for _, check := range res.Checks {
		fmt.Printf("  [%-5s] %-24s %s\n", strings.ToUpper(string(check.Level)), check.ID, check.Summary)
	}
	fmt.Println()
	fmt.Printf("  Overall: %s (%d ok, %d warn, %d error)\n",
		res.Summary.Overall, res.Summary.OKCount, res.Summary.WarnCount, res.Summary.ErrorCount)

	audit.New(cfg.Manager.DataDir).SafeAppend(audit.Event{
		Type:    audit.EventDiagnosticsRun,
		Actor:   audit.ActorCLI,
		Details: map[string]interface{}{"overall": res.Summary.Overall},
	})

	if res.Summary.Overall == diagnostics.LevelError {
		os.Exit(1)
	}
}
