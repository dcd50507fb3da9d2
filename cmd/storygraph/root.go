package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/storygraph/internal/config"
	"github.com/aretw0/storygraph/internal/logging"
)

// cli carries the configuration shared by every subcommand.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "storygraph",
		Short: "Storygraph plays and validates branching stories",
		Long: `Storygraph drives players through branching stories, keeps their progress
and checks stories for unreachable nodes, dead ends and other structural defects.

Settings are read from STORYGRAPH_* environment variables; flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("log-format") {
				cfg.LogFormat, _ = flags.GetString("log-format")
			}
			if flags.Changed("backend") {
				cfg.Backend, _ = flags.GetString("backend")
			}
			if flags.Changed("stories") {
				cfg.StoriesDir, _ = flags.GetString("stories")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger = logging.NewFormat(cfg.LogFormat, level)
			return nil
		},
	}

	// Persistent flags (available to all commands)
	pf := root.PersistentFlags()
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("log-format", "json", "Log format: json or text")
	pf.String("backend", "memory", "Progress backend: memory, redis or postgres")
	pf.String("stories", "", "Directory of story files seeded into the memory graph")

	root.AddCommand(
		newServeCmd(c),
		newValidateCmd(c),
		newGraphCmd(c),
		newPlayCmd(c),
		newMCPCmd(c),
		newMigrateCmd(c),
		newSeedCmd(c),
		newVersionCmd(),
	)
	return root
}
