// Package link manages channel links in the relay registry from the
// command line, without a running bot.
package link

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/prismbot/prism/cmd/prism/internal"
	"github.com/prismbot/prism/pkg/bridge"
)

func NewLinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage channel links",
		Example: `  prism link add <source-channel-id> <target-channel-id>...
  prism link list`,
	}

	cmd.AddCommand(newAddCommand(), newListCommand())

	return cmd
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <source> <target>...",
		Short: "Link a source channel to one or more targets",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			store := bridge.NewStore(cfg.RegistryPath())
			state, err := store.Load()
			if err != nil {
				return err
			}

			source := args[0]
			added := 0
			for _, target := range args[1:] {
				if state.AddLink(source, target) {
					added++
				}
			}
			if err := store.Save(state); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %v (%d new)\n",
				source, state.LinkedTargets(source), added)
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured channel links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			store := bridge.NewStore(cfg.RegistryPath())
			state, err := store.Load()
			if err != nil {
				return err
			}

			if len(state.LinkedChannels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No channel links configured.")
				return nil
			}

			sources := make([]string, 0, len(state.LinkedChannels))
			for source := range state.LinkedChannels {
				sources = append(sources, source)
			}
			sort.Strings(sources)

			for _, source := range sources {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %v\n", source, state.LinkedChannels[source])
			}
			// Webhook handles are capabilities; only report how many exist.
			fmt.Fprintf(cmd.OutOrStdout(), "%d webhook(s) provisioned\n", len(state.Webhooks))
			return nil
		},
	}
}
