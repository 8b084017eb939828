package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/stagelink/cmd/stagelink/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print stagelink version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("stagelink %s (%s, %s/%s)\n",
				internal.FormatVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
