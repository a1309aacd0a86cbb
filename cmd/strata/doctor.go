package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/strata/internal/cli"
	"github.com/pthm/strata/internal/doctor"
	"github.com/pthm/strata/pkg/reader"
)

var doctorVerbose bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Run health checks on the store: core tables, type root, required names and relationships, and type tables.`,
	Example: `  # Run health checks
  strata doctor --db postgres://localhost/reason

  # Run with verbose output
  strata doctor --details`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verboseFlag := resolveBool(doctorVerbose, cfg.Doctor.Verbose)
		ctx := cmd.Context()

		return withReader(ctx, func(r *reader.Reader) error {
			out := cmd.OutOrStdout()
			if !quiet {
				_, _ = fmt.Fprintln(out, "strata doctor - Health Check")
			}

			report, err := doctor.New(r).Run(ctx)
			if err != nil {
				return cli.GeneralError("running doctor", err)
			}

			report.Print(out, verboseFlag)

			if report.HasErrors() {
				return cli.GeneralError("health checks failed", nil)
			}
			return nil
		})
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorVerbose, "details", false, "show detailed output")
}
