package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawman/internal/audit"
	"github.com/nextlevelbuilder/clawman/internal/config"
	"github.com/nextlevelbuilder/clawman/internal/genconfig"
	"github.com/nextlevelbuilder/clawman/internal/state"
	"github.com/nextlevelbuilder/clawman/internal/telegram"
)

func connectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect an integration interactively",
	}
	cmd.AddCommand(connectTelegramCmd())
	cmd.AddCommand(connectGmailCmd())
	return cmd
}

func openStores() (*config.Config, *state.Store, *audit.Log, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, nil, err
	}
	states := state.New(cfg.Manager.DataDir,
		state.WithProjector(genconfig.NewWriter(cfg.Manager.DataDir)))
	return cfg, states, audit.New(cfg.Manager.DataDir), nil
}

func connectTelegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Connect a Telegram bot by token",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()

			_, states, audits, err := openStores()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				os.Exit(1)
			}

			var token string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Telegram bot token").
					Description("From @BotFather. The token is stored locally and never leaves this machine.").
					EchoMode(huh.EchoModePassword).
					Value(&token).
					Validate(func(s string) error {
						if !telegram.LooksLikeToken(s) {
							return errors.New("that does not look like a bot token")
						}
						return nil
					}),
			))
			if err := form.Run(); err != nil {
				os.Exit(1)
			}

			label, err := telegram.NewValidator().Validate(cmd.Context(), token)
			if err != nil {
				reason := "telegram_rejected_token"
				if errors.Is(err, telegram.ErrInvalidFormat) {
					reason = "invalid_token_format"
				}
				if serr := states.SetTelegramError(reason); serr != nil {
					slog.Error("failed to persist state", "error", serr)
				}
				audits.SafeAppend(audit.Event{
					Type:    audit.EventTelegramConnectFailed,
					Actor:   audit.ActorCLI,
					Details: map[string]interface{}{"reason": reason},
				})
				fmt.Fprintf(os.Stderr, "Validation failed: %s\n", reason)
				os.Exit(1)
			}

			if err := states.SetTelegramToken(token); err != nil {
				slog.Error("failed to persist token", "error", err)
				os.Exit(1)
			}
			audits.SafeAppend(audit.Event{
				Type:    audit.EventTelegramConnect,
				Actor:   audit.ActorCLI,
				Details: map[string]interface{}{"botLabel": label},
			})
			fmt.Printf("Connected %s\n", label)
		},
	}
}

func connectGmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail",
		Short: "Store Google OAuth client credentials",
		Run: func(cmd *cobra.Command, args []string) {
			setupLogging()

			_, states, audits, err := openStores()
			if err != nil {
				slog.Error("failed to load config", "error", err)
				os.Exit(1)
			}

			required := func(s string) error {
				if s == "" {
					return errors.New("required")
				}
				return nil
			}

			var clientID, clientSecret string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("OAuth client ID").
					Value(&clientID).
					Validate(required),
				huh.NewInput().
					Title("OAuth client secret").
					EchoMode(huh.EchoModePassword).
					Value(&clientSecret).
					Validate(required),
			))
			if err := form.Run(); err != nil {
				os.Exit(1)
			}

			if err := states.SetGmailOAuthCreds(clientID, clientSecret); err != nil {
				audits.SafeAppend(audit.Event{
					Type:    audit.EventGmailCredsSetFailed,
					Actor:   audit.ActorCLI,
					Details: map[string]interface{}{"reason": "persist_failed"},
				})
				slog.Error("failed to persist credentials", "error", err)
				os.Exit(1)
			}
			audits.SafeAppend(audit.Event{Type: audit.EventGmailCredsSet, Actor: audit.ActorCLI})

			fmt.Println("Credentials stored. Finish authorization from the desktop app,")
			fmt.Println("which opens the Google consent page in your browser.")
		},
	}
}
