package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/cli"
	"github.com/pthm/strata/pkg/graph"
	"github.com/pthm/strata/pkg/reader"
)

var assocKind string

var assocCmd = &cobra.Command{
	Use:   "assoc <id|unique_name>",
	Short: "List the entities an entity points at",
	Long: `List the b side of every relationship whose a side is the given entity.
With --kind, only relationships of that allowable relationship name are
followed.`,
	Example: `  strata assoc site_one
  strata assoc site_one --kind owns`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			id, err := resolveEntity(ctx, r, args[0])
			if err != nil {
				return err
			}

			var ids []strata.ID
			if assocKind != "" {
				ids, err = r.Graph.Targets(ctx, id, graph.KindName(assocKind))
			} else {
				ids, err = r.Graph.AssociationsOf(ctx, id)
			}
			if err != nil {
				return cli.LookupError("listing associations", err)
			}
			for _, b := range ids {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		})
	},
}

var ownerCmd = &cobra.Command{
	Use:   "owner <id|unique_name>",
	Short: "Show the site that owns an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			id, err := resolveEntity(ctx, r, args[0])
			if err != nil {
				return err
			}
			site, err := r.Graph.OwningSiteOf(ctx, id)
			if err != nil {
				return cli.LookupError("finding owner", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), site)
			return nil
		})
	},
}

var borrowersCmd = &cobra.Command{
	Use:   "borrowers <id|unique_name>",
	Short: "List the sites that borrow an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			id, err := resolveEntity(ctx, r, args[0])
			if err != nil {
				return err
			}
			sites, err := r.Graph.BorrowingSitesOf(ctx, id)
			if err != nil {
				return cli.LookupError("finding borrowers", err)
			}
			list := make([]strata.Entity, 0, len(sites))
			for _, s := range sites {
				list = append(list, s)
			}
			sortByID(list)
			printTable(cmd.OutOrStdout(), entityHeaders, entityRows(list))
			return nil
		})
	},
}

func init() {
	assocCmd.Flags().StringVar(&assocKind, "kind", "", "only follow relationships with this name")
}

func sortByID(list []strata.Entity) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
}

func asGap(err error) (*strata.IntegrityGapError, bool) {
	var gap *strata.IntegrityGapError
	if errors.As(err, &gap) {
		return gap, true
	}
	return nil, false
}
