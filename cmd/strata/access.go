package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/strata/internal/cli"
	"github.com/pthm/strata/pkg/privilege"
	"github.com/pthm/strata/pkg/reader"
)

var rolesPrivileges bool

var rolesCmd = &cobra.Command{
	Use:   "roles <user>",
	Short: "Show the roles a user holds",
	Long: `Show the roles a user holds. A user with no roles is shown with the
default role. The user may be given as an id or a username.`,
	Example: `  strata roles alice
  strata roles alice --privileges`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			user, err := resolveUser(ctx, r, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rolesPrivileges {
				privs, err := r.Privileges.Privileges(ctx, user)
				if err != nil {
					return cli.LookupError("resolving privileges", err)
				}
				for _, p := range privs {
					_, _ = fmt.Fprintln(out, p)
				}
				return nil
			}

			roles, err := r.Privileges.RolesOf(ctx, user)
			if err != nil {
				return cli.LookupError("resolving roles", err)
			}
			rows := make([][]string, 0, len(roles))
			for _, role := range roles {
				id := "-"
				if !role.ID.IsZero() {
					id = role.ID.String()
				}
				def := ""
				if role.Default {
					def = "yes"
				}
				rows = append(rows, []string{id, role.UniqueName, dash(role.Name), def})
			}
			printTable(out, []string{"ID", "UNIQUE_NAME", "NAME", "DEFAULT"}, rows)
			return nil
		})
	},
}

var canCmd = &cobra.Command{
	Use:   "can <user> <privilege>",
	Short: "Check whether a user holds a privilege",
	Long: `Check whether a user holds a privilege through any of their roles.
Prints "allowed" or "denied"; a denied check exits with status 1.`,
	Example: `  strata can alice edit_html`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := privilege.Parse(args[1])
		if err != nil {
			return cli.GeneralError("invalid privilege", err)
		}

		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			user, err := resolveUser(ctx, r, args[0])
			if err != nil {
				return err
			}
			ok, err := r.Privileges.HasPrivilege(ctx, user, priv)
			if err != nil {
				return cli.LookupError("checking privilege", err)
			}
			if !ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "denied")
				return cli.GeneralError(fmt.Sprintf("user %s lacks %s", args[0], priv), nil)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "allowed")
			return nil
		})
	},
}

func init() {
	rolesCmd.Flags().BoolVar(&rolesPrivileges, "privileges", false, "list effective privileges instead of roles")
}
