package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flexmarket/config"
	"github.com/kilianp07/flexmarket/infra/logger"
)

type rootOptions struct {
	cfgPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "flexmarket",
		Short:         "Flexibility market clearing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "config.yaml", "configuration file")

	serve := newServeCmd(opts)
	root.RunE = serve.RunE
	root.AddCommand(serve, newClearCmd(opts), newSimulateCmd(opts), newHistoryCmd(opts))
	return root
}

// Execute runs the CLI.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

// loadConfig reads the configuration file and applies its logging section.
// When the default path does not exist and no path was given explicitly the
// built-in defaults are used, so offline commands work without a file.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(o.cfgPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		if cfg, err = config.Load(o.cfgPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
