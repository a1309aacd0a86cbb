package main

import (
	"fmt"

	"github.com/spf13/cobra"

	schemasql "github.com/pthm/strata/sql"
)

var configShowSource bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Show the effective configuration after merging defaults, config file, and environment variables.
Passwords are masked.`,
	Example: `  # Show effective configuration
  strata config show

  # Show configuration with source file path
  strata config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if configShowSource {
			if configPath != "" {
				_, _ = fmt.Fprintf(out, "Config file: %s\n\n", configPath)
			} else {
				_, _ = fmt.Fprintln(out, "Config file: (none, using defaults)")
				_, _ = fmt.Fprintln(out)
			}
		}
		return printYAML(out, cfg.Redacted())
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the core table DDL",
	Long: `Print the CREATE TABLE statements for the entity, relationship and
allowable_relationship tables. The DDL is portable across PostgreSQL, MySQL
and SQLite.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), schemasql.SchemaSQL)
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "show config file source")
	configCmd.AddCommand(configShowCmd)
}
