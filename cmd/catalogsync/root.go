package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/catalogsync/pkg/config"
	"github.com/entrhq/catalogsync/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli holds state shared by the subcommands.
type cli struct {
	configFile string
	logLevel   string
	headless   bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "catalogsync",
		Short:         "Bulk product updates through a logged-in browser session",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "config file (default ./catalogsync.yaml or ~/.catalogsync/catalogsync.yaml)")
	flags.StringVar(&c.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.BoolVar(&c.headless, "headless", false, "run the browser headless (login must already be cached in the profile)")

	root.AddCommand(
		newServeCmd(c),
		newRunCmd(c),
		newRetryCmd(c),
		newHistoryCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	v := config.NewViper(c.configFile)
	if cmd.Flags().Changed("log-level") {
		v.Set("logging.level", c.logLevel)
	}
	if cmd.Flags().Changed("headless") {
		v.Set("browser.headless", c.headless)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	path, err := logging.Initialize(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
	if path != "" {
		logging.NewLogger("cli").Infof("logging to %s", path)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalogsync version %s\n", version)
		},
	}
}
