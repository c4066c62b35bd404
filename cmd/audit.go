package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/config"
)

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				slog.Error("failed to load config", "error", err)
				os.Exit(1)
			}

			res, err := audit.New(cfg.Manager.DataDir).ReadRecent(limit)
			if err != nil {
				slog.Error("failed to read audit log", "error", err)
				os.Exit(1)
			}

			for _, ev := range res.Events {
				line := fmt.Sprintf("%s  %-12s %s",
					ev.TS.Format(time.RFC3339), ev.Actor, ev.Type)
				if len(ev.Details) > 0 {
					if details, err := json.Marshal(ev.Details); err == nil {
						line += "  " + string(details)
					}
				}
				fmt.Println(line)
			}
			if res.Truncated {
				fmt.Fprintln(os.Stderr, "(older events truncated)")
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events to show")
	return cmd
}
