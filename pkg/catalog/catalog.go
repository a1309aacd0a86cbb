// Package catalog resolves the names the store uses to describe itself:
// unique names to entity ids, allowable relationship names to ids, and
// types to the physical tables that hold their fields.
//
// Every lookup is memoized in the Catalog's cache for the life of the
// process. Pass strata.Fresh() to reload a single lookup from the store.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/query"
	"github.com/pthm/strata/pkg/sqldsl"
)

// Well-known unique names and relationship names the catalog depends on.
const (
	TypeRootName     = "type"
	ContentTableName = "content_table"
	SiteTypeName     = "site"
	UserTypeName     = "user"
	UserRoleTypeName = "user_role"

	RelTypeToTable = "type_to_table"
	RelOwns        = "owns"
	RelBorrows     = "borrows"
)

// Catalog resolves names, relationship kinds and table membership.
// It is safe for concurrent use.
type Catalog struct {
	q      strata.Querier
	memo   *strata.Memo
	logger *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCache sets the cache lookups are memoized in. Catalogs sharing a cache
// share results.
func WithCache(c strata.Cache) Option {
	return func(cat *Catalog) {
		cat.memo = strata.NewMemo(c)
	}
}

// WithLogger sets the logger for not-found diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cat *Catalog) {
		if l != nil {
			cat.logger = l
		}
	}
}

// New creates a Catalog reading from q.
func New(q strata.Querier, opts ...Option) *Catalog {
	c := &Catalog{
		q:      q,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.memo == nil {
		c.memo = strata.NewMemo(nil)
	}
	return c
}

// Querier returns the handle the catalog reads from.
func (c *Catalog) Querier() strata.Querier {
	return c.q
}

// Logger returns the catalog's logger.
func (c *Catalog) Logger() *slog.Logger {
	return c.logger
}

// nameEntry is one row of the unique-name map.
type nameEntry struct {
	ID   strata.ID
	Type strata.ID
}

// uniqueNames loads the whole live and pending unique-name map. The map is
// cached as one value, so Fresh reloads every name at once.
func (c *Catalog) uniqueNames(ctx context.Context, fresh bool) (map[string]nameEntry, error) {
	return strata.Remember(ctx, c.memo, strata.Key("catalog", "unique_names"), fresh,
		func(ctx context.Context) (map[string]nameEntry, error) {
			rows, err := query.New().
				AddTable(strata.TableEntity).
				AddField(strata.TableEntity, "id").
				AddField(strata.TableEntity, "unique_name").
				AddField(strata.TableEntity, "type").
				Where(
					sqldsl.IsNotNull{Expr: col(strata.TableEntity, "unique_name")},
					sqldsl.Ne{Left: col(strata.TableEntity, "unique_name"), Right: sqldsl.Lit("")},
					sqldsl.In{Expr: col(strata.TableEntity, "state"), Values: []string{
						strata.StateLive.String(), strata.StatePending.String(),
					}},
				).
				OrderBy(col(strata.TableEntity, "id")).
				Run(ctx, c.q)
			if err != nil {
				return nil, fmt.Errorf("load unique names: %w", err)
			}

			// Rows come in id order, so a name shared by several entities
			// resolves to the highest id.
			names := make(map[string]nameEntry, len(rows))
			for _, row := range rows {
				names[row.String("unique_name")] = nameEntry{ID: row.IDField("id"), Type: row.IDField("type")}
			}
			return names, nil
		})
}

// IDOf returns the id of the live or pending entity with the given unique
// name. Misses return strata.ErrNotFound and log a warning unless the
// lookup is Quiet.
func (c *Catalog) IDOf(ctx context.Context, uniqueName string, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	names, err := c.uniqueNames(ctx, l.Fresh)
	if err != nil {
		return 0, err
	}
	e, ok := names[uniqueName]
	if !ok {
		c.notFound(ctx, l, "unique name", uniqueName)
		return 0, strata.NotFound("unique name", uniqueName)
	}
	return e.ID, nil
}

// UniqueNameExists reports whether any live or pending entity carries name.
// Store errors are logged and reported as false.
func (c *Catalog) UniqueNameExists(ctx context.Context, name string, opts ...strata.LookupOption) bool {
	opts = append(append([]strata.LookupOption(nil), opts...), strata.Quiet())
	_, err := c.IDOf(ctx, name, opts...)
	if err != nil && !strata.IsNotFoundErr(err) {
		c.logger.WarnContext(ctx, "unique name lookup failed", "unique_name", name, "error", err)
	}
	return err == nil
}

// Root returns the type of types: the entity named "type" whose type is
// itself. Every walk up the type graph ends here.
func (c *Catalog) Root(ctx context.Context, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	names, err := c.uniqueNames(ctx, l.Fresh)
	if err != nil {
		return 0, err
	}
	return rootOf(names)
}

func rootOf(names map[string]nameEntry) (strata.ID, error) {
	e, ok := names[TypeRootName]
	if !ok {
		return 0, fmt.Errorf("%w: no entity named %q", strata.ErrIntegrityGap, TypeRootName)
	}
	if e.Type != e.ID {
		return 0, fmt.Errorf("%w: %q (%d) is typed %d, not itself",
			strata.ErrIntegrityGap, TypeRootName, e.ID, e.Type)
	}
	return e.ID, nil
}

// TypeID resolves a type's unique name to its id. Names that belong to
// entities other than types return strata.ErrNotFound. It shares the
// unique-name map with IDOf, so Fresh reloads every name.
func (c *Catalog) TypeID(ctx context.Context, uniqueName string, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	names, err := c.uniqueNames(ctx, l.Fresh)
	if err != nil {
		return 0, err
	}
	root, err := rootOf(names)
	if err != nil {
		return 0, err
	}
	e, ok := names[uniqueName]
	if !ok || e.Type != root {
		c.notFound(ctx, l, "type", uniqueName)
		return 0, strata.NotFound("type", uniqueName)
	}
	return e.ID, nil
}

var uniqueNamePattern = regexp.MustCompile(`^[0-9a-zA-Z_]+$`)

// ValidUniqueName reports whether s is usable as a unique name: non-empty
// and made only of ASCII letters, digits and underscores.
func ValidUniqueName(s string) bool {
	return uniqueNamePattern.MatchString(s)
}

var protectedTables = []string{
	"allowable_relationship",
	"entity",
	"page_cache_log",
	"page_cache_log_archive",
	"relationship",
	"URL_history",
}

// ProtectedTables lists tables that are not entity tables and must never be
// treated as one, even if a content_table entity names them.
func ProtectedTables() []string {
	return append([]string(nil), protectedTables...)
}

// IsProtectedTable reports whether name is in ProtectedTables.
func IsProtectedTable(name string) bool {
	for _, t := range protectedTables {
		if t == name {
			return true
		}
	}
	return false
}

func (c *Catalog) notFound(ctx context.Context, l strata.Lookup, kind string, key any) {
	if l.Quiet {
		return
	}
	c.logger.WarnContext(ctx, kind+" not found", "key", key)
}

func col(table, column string) sqldsl.Col {
	return sqldsl.Col{Table: table, Column: column}
}

func idLit(id strata.ID) sqldsl.Int {
	return sqldsl.Int(int64(id))
}
