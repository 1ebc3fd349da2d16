package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/termstack/internal/app"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var opts app.Options

	rootCmd := &cobra.Command{
		Use:   "termstack [config]",
		Short: "Declarative terminal dashboards",
		Long: `termstack renders a YAML or TOML dashboard definition as an interactive
terminal UI: pages fetch rows from commands, HTTP endpoints or streams and
link to each other through the selected row.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if opts.ConfigPath != "" && opts.ConfigPath != args[0] {
					return errors.New("config given both as argument and --config")
				}
				opts.ConfigPath = args[0]
			}
			if opts.ConfigPath == "" {
				return errors.New("no config file given")
			}
			opts.Out = cmd.OutOrStdout()
			return app.Run(cmd.Context(), opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "dashboard definition (.yaml or .toml)")
	flags.BoolVar(&opts.Validate, "validate", false, "check the configuration and exit")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "write debug logs")
	flags.StringVar(&opts.LogFile, "log-file", "", "log file path (default $XDG_STATE_HOME/termstack/termstack.log)")
	flags.StringVar(&opts.PrefsPath, "prefs", "", "preferences file (default ~/.config/termstack/prefs.toml)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "termstack: %v\n", err)
		return 1
	}
	return 0
}
