package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/stagelink/cmd/stagelink/internal"
	"github.com/tinyland-inc/stagelink/cmd/stagelink/internal/run"
	"github.com/tinyland-inc/stagelink/cmd/stagelink/internal/version"
)

func NewStagelinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stagelink",
		Short:   "stagelink - studio bridge client v" + internal.FormatVersion(),
		Example: "stagelink run",
	}

	cmd.AddCommand(
		run.NewRunCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewStagelinkCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
