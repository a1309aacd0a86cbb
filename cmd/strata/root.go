package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pthm/strata/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     = slog.Default()

	// Persistent flags
	cfgFile  string
	verbose  int
	quiet    bool
	dbURL    string
	dbDriver string
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Read-only access to an entity/relationship store",
	Long: `strata - read-only access to an entity/relationship store

Strata resolves unique names, type tables, entities, relationships and
privileges from a Reason-style store, where every object is an entity and
the schema itself is described by entities and typed edges.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that never read configuration
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" || cmd.Name() == "schema" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}
		if dbURL != "" {
			cfg.Database.URL = dbURL
		}
		if dbDriver != "" {
			cfg.Database.Driver = dbDriver
		}
		if err := cfg.Validate(); err != nil {
			return cli.ConfigError("invalid configuration", err)
		}

		logger, err = newLogger(cmd.ErrOrStderr())
		if err != nil {
			return cli.ConfigError("configuring logging", err)
		}
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupLookup  = "lookup"
	groupGraph   = "graph"
	groupAccess  = "access"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover strata.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database URL or DSN (overrides database.url)")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", "", "database driver: postgres, pgx, mysql or sqlite")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupLookup, Title: "Lookup:"},
		&cobra.Group{ID: groupGraph, Title: "Graph:"},
		&cobra.Group{ID: groupAccess, Title: "Access:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	for _, c := range []*cobra.Command{idOfCmd, typesCmd, tablesCmd, entityCmd, entitiesCmd} {
		c.GroupID = groupLookup
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{assocCmd, ownerCmd, borrowersCmd} {
		c.GroupID = groupGraph
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{rolesCmd, canCmd} {
		c.GroupID = groupAccess
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{doctorCmd, schemaCmd, configCmd, versionCmd} {
		c.GroupID = groupUtility
		rootCmd.AddCommand(c)
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// newLogger builds the logger from log.level and log.format. Each -v lowers
// the level by one step; -q raises it to error.
func newLogger(w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	level -= slog.Level(4 * verbose)
	if quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
