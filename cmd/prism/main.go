package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/prismbot/prism/cmd/prism/internal/auth"
	"github.com/prismbot/prism/cmd/prism/internal/link"
	"github.com/prismbot/prism/cmd/prism/internal/run"
	"github.com/prismbot/prism/cmd/prism/internal/version"
)

func NewPrismCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prism",
		Short:   "prism - cross-channel relay and URL preview bot for Discord",
		Example: "prism run",
	}

	cmd.AddCommand(
		run.NewRunCommand(),
		link.NewLinkCommand(),
		auth.NewAuthCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewPrismCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
