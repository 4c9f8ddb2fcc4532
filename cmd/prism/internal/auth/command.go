// Package auth stores service credentials into the prism config.
package auth

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/prismbot/prism/cmd/prism/internal"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store service credentials",
		Example: `  prism auth discord
  prism auth kakao`,
	}

	cmd.AddCommand(newDiscordCommand(), newKakaoCommand())

	return cmd
}

func newDiscordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Store the Discord bot token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := promptSecret("Paste your Discord bot token: ")
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("no token given")
			}

			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			cfg.Discord.Token = token
			if err := internal.SaveConfig(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✅ Discord token saved")
			return nil
		},
	}
}

func newKakaoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kakao",
		Short: "Store the Kakao REST key (enables the air-quality command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := promptSecret("Paste your Kakao REST key: ")
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("no key given")
			}

			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			cfg.Providers.Kakao.RESTKey = key
			if err := internal.SaveConfig(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✅ Kakao REST key saved")
			return nil
		},
	}
}

func promptSecret(prompt string) (string, error) {
	rl, err := readline.New(prompt)
	if err != nil {
		return "", err
	}
	defer rl.Close()

	line, err := rl.ReadPassword(prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(line)), nil
}
