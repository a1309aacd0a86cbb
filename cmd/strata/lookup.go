package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/cli"
	"github.com/pthm/strata/pkg/entity"
	"github.com/pthm/strata/pkg/reader"
	"github.com/pthm/strata/pkg/sqldsl"
)

var idOfType bool

var idOfCmd = &cobra.Command{
	Use:   "id-of <unique_name>",
	Short: "Resolve a unique name to an entity id",
	Example: `  # Resolve a unique name
  strata id-of site_one

  # Resolve a type, failing if the name is not a type
  strata id-of image --type`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			lookup := r.Catalog.IDOf
			if idOfType {
				lookup = r.Catalog.TypeID
			}
			id, err := lookup(ctx, args[0])
			if err != nil {
				return cli.LookupError("resolving "+args[0], err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List every type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			types, err := r.Catalog.Types(ctx)
			if err != nil {
				return cli.LookupError("listing types", err)
			}
			printTable(cmd.OutOrStdout(), entityHeaders, entityRows(types))
			return nil
		})
	},
}

var tablesFields bool

var tablesCmd = &cobra.Command{
	Use:   "tables <type>",
	Short: "List the tables of a type",
	Long: `List the tables an entity of the given type spans, in join order.
The type may be given as an id or a unique name.`,
	Example: `  strata tables image
  strata tables image --fields`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			typeID, err := resolveType(ctx, r, args[0])
			if err != nil {
				return err
			}
			if typeID.IsZero() {
				return cli.GeneralError("type id must not be 0", nil)
			}
			out := cmd.OutOrStdout()
			if !tablesFields {
				tables, err := r.Catalog.TablesForType(ctx, typeID)
				if err != nil {
					return cli.LookupError("listing tables", err)
				}
				for _, t := range tables {
					_, _ = fmt.Fprintln(out, t)
				}
				return nil
			}

			fields, err := r.Catalog.FieldsOfType(ctx, typeID)
			if err != nil {
				return cli.LookupError("listing fields", err)
			}
			return printYAML(out, fields)
		})
	},
}

var entityCmd = &cobra.Command{
	Use:   "entity <id|unique_name>",
	Short: "Show an entity with all of its type's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			id, err := resolveEntity(ctx, r, args[0])
			if err != nil {
				return err
			}
			if id.IsZero() {
				return cli.GeneralError("entity id must not be 0", nil)
			}
			e, err := r.Entities.GetByID(ctx, id)
			if gap, ok := asGap(err); ok {
				logger.WarnContext(ctx, "showing partial entity", "id", id, "missing_tables", gap.Tables)
				return printYAML(cmd.OutOrStdout(), gap.Partial)
			}
			if err != nil {
				return cli.LookupError("loading entity", err)
			}
			return printYAML(cmd.OutOrStdout(), e)
		})
	},
}

var (
	entitiesSite    []string
	entitiesSharing string
	entitiesStates  []string
	entitiesLimit   int
	entitiesOffset  int
	entitiesDesc    bool
)

var entitiesCmd = &cobra.Command{
	Use:   "entities <type>",
	Short: "List the entities of a type",
	Example: `  # Live images owned by site_one
  strata entities image --site site_one --state Live

  # Images site_two owns or borrows
  strata entities image --site site_two --sharing owns_or_borrows`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withReader(ctx, func(r *reader.Reader) error {
			typeID, err := resolveType(ctx, r, args[0])
			if err != nil {
				return err
			}
			if typeID.IsZero() {
				return cli.GeneralError("type id must not be 0", nil)
			}

			var opts []entity.SelectOption
			if len(entitiesSite) > 0 {
				sharing, err := entity.ParseSharing(entitiesSharing)
				if err != nil {
					return cli.GeneralError("invalid --sharing", err)
				}
				sites := make([]strata.ID, 0, len(entitiesSite))
				for _, s := range entitiesSite {
					id, err := resolveEntity(ctx, r, s)
					if err != nil {
						return err
					}
					sites = append(sites, id)
				}
				opts = append(opts, entity.WithSite(sharing, sites...))
			}
			if len(entitiesStates) > 0 {
				states := make([]strata.State, 0, len(entitiesStates))
				for _, s := range entitiesStates {
					states = append(states, strata.State(s))
				}
				opts = append(opts, entity.WithState(states...))
			}
			if entitiesDesc {
				opts = append(opts, entity.OrderBy(sqldsl.Desc{Expr: sqldsl.Col{Table: strata.TableEntity, Column: "id"}}))
			}
			if entitiesLimit > 0 || entitiesOffset > 0 {
				opts = append(opts, entity.Limit(entitiesLimit, entitiesOffset))
			}

			list, err := r.Entities.ListByType(ctx, typeID, opts...)
			if err != nil {
				return cli.LookupError("listing entities", err)
			}
			printTable(cmd.OutOrStdout(), entityHeaders, entityRows(list))
			return nil
		})
	},
}

func init() {
	idOfCmd.Flags().BoolVar(&idOfType, "type", false, "require the name to be a type")
	tablesCmd.Flags().BoolVar(&tablesFields, "fields", false, "show the columns of each table")

	f := entitiesCmd.Flags()
	f.StringSliceVar(&entitiesSite, "site", nil, "restrict to entities related to these sites (id or unique name)")
	f.StringVar(&entitiesSharing, "sharing", entity.SharingOwns.String(),
		"site relationship: "+strings.Join(sharingModes(), ", "))
	f.StringSliceVar(&entitiesStates, "state", nil, "restrict to these states (Live, Pending, Deleted)")
	f.IntVar(&entitiesLimit, "limit", 0, "maximum number of entities (0 = no limit)")
	f.IntVar(&entitiesOffset, "offset", 0, "number of entities to skip")
	f.BoolVar(&entitiesDesc, "desc", false, "list newest entities first")
}

func sharingModes() []string {
	modes := []string{
		entity.SharingOwns.String(),
		entity.SharingBorrows.String(),
		entity.SharingOwnsOrBorrows.String(),
	}
	sort.Strings(modes)
	return modes
}
