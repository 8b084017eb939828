package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/stagelink/cmd/stagelink/internal"
	"github.com/tinyland-inc/stagelink/pkg/config"
	"github.com/tinyland-inc/stagelink/pkg/console"
	"github.com/tinyland-inc/stagelink/pkg/core"
	"github.com/tinyland-inc/stagelink/pkg/host"
	"github.com/tinyland-inc/stagelink/pkg/logger"
)

func NewRunCommand() *cobra.Command {
	var debug bool
	var noConsole bool

	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"r"},
		Short:   "Connect to the studio and run the bridge",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCmd(debug, noConsole)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noConsole, "no-console", false, "Disable the interactive console")

	return cmd
}

func runCmd(debug bool, noConsole bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if debug {
		logger.SetLevel(logger.DEBUG)
	} else {
		logger.SetLevel(parseLevel(cfg.Log.Level))
	}

	ctrl := core.New(cfg, host.LogHost{})
	ctrl.Start()
	defer ctrl.Close()

	watcher, err := config.NewWatcher(internal.GetConfigPath(), cfg.Studio, ctrl.ApplyConfig)
	if err != nil {
		logger.WarnCF("run", "Config watcher unavailable", map[string]any{"error": err.Error()})
	} else {
		defer watcher.Close()
	}

	logger.InfoCF("run", "stagelink started", map[string]any{
		"studio": cfg.Studio.URL(),
	})

	if cfg.Console.Enabled && !noConsole {
		return console.Run(ctrl)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.InfoC("run", "Shutting down")
	return nil
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DEBUG
	case "warn":
		return logger.WARN
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}
