// Package entity materializes entities. An entity's fields are spread over
// the entity table and one auxiliary table per content table of its type, so
// every load is a join whose shape is computed from the catalog.
package entity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/query"
	"github.com/pthm/strata/pkg/sqldsl"
)

// Catalog is the part of the schema catalog the store needs.
// *catalog.Catalog satisfies it.
type Catalog interface {
	IDOf(ctx context.Context, uniqueName string, opts ...strata.LookupOption) (strata.ID, error)
	TypeID(ctx context.Context, uniqueName string, opts ...strata.LookupOption) (strata.ID, error)
	TablesForType(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) ([]string, error)
	TablesForEntity(ctx context.Context, entityID strata.ID, opts ...strata.LookupOption) ([]string, error)
	OwnsRelationshipID(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) (strata.ID, error)
	BorrowRelationshipID(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) (strata.ID, error)
}

// Store loads entities. It is safe for concurrent use.
type Store struct {
	q      strata.Querier
	cat    Catalog
	memo   *strata.Memo
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCache sets the cache GetByID and UserID results are memoized in.
func WithCache(c strata.Cache) Option {
	return func(s *Store) {
		s.memo = strata.NewMemo(c)
	}
}

// WithLogger sets the logger for integrity diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store reading from q and resolving tables through cat.
func New(q strata.Querier, cat Catalog, opts ...Option) *Store {
	s := &Store{
		q:      q,
		cat:    cat,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.memo == nil {
		s.memo = strata.NewMemo(nil)
	}
	return s
}

// GetByID loads one entity with the fields of every table of its type.
// The result is cached per id and a copy is returned, so callers may modify
// it freely.
//
// An id with no entity row returns strata.ErrNotFound. If the entity row
// exists but an auxiliary table lacks its row, or the table is missing,
// the error is a *strata.IntegrityGapError whose Partial holds the entity
// row alone. A zero id panics.
func (s *Store) GetByID(ctx context.Context, id strata.ID, opts ...strata.LookupOption) (strata.Entity, error) {
	strata.MustID("GetByID", id)
	l := strata.NewLookup(opts...)

	e, err := strata.Remember(ctx, s.memo, strata.Key("entity", "by_id", id), l.Fresh,
		func(ctx context.Context) (strata.Entity, error) {
			tables, err := s.cat.TablesForEntity(ctx, id, opts...)
			if err != nil {
				return nil, err
			}

			sel := joinTables(query.New(), tables).
				Where(sqldsl.Eq{Left: col(strata.TableEntity, "id"), Right: idLit(id)})
			row, err := sel.First(ctx, s.q)
			if err != nil && !strata.IsMissingTableErr(err) {
				return nil, fmt.Errorf("get entity %d: %w", id, err)
			}
			if row != nil {
				return strata.Entity(row), nil
			}
			return nil, s.diagnose(ctx, id, tables)
		})
	if err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

// diagnose explains why the join for id returned nothing.
func (s *Store) diagnose(ctx context.Context, id strata.ID, tables []string) error {
	base, err := query.New().
		AddTable(strata.TableEntity).
		AddField(strata.TableEntity, "*").
		Where(sqldsl.Eq{Left: col(strata.TableEntity, "id"), Right: idLit(id)}).
		First(ctx, s.q)
	if err != nil {
		return fmt.Errorf("get entity %d: %w", id, err)
	}
	if base == nil {
		return strata.NotFound("entity", id)
	}

	var missing []string
	for _, t := range tables[1:] {
		row, err := query.New().
			AddTable(t).
			AddField(t, "id").
			Where(sqldsl.Eq{Left: col(t, "id"), Right: idLit(id)}).
			First(ctx, s.q)
		if err != nil && !strata.IsMissingTableErr(err) {
			return fmt.Errorf("get entity %d: %w", id, err)
		}
		if row == nil {
			missing = append(missing, t)
		}
	}

	gap := &strata.IntegrityGapError{ID: id, Tables: missing, Partial: strata.Entity(base)}
	s.logger.WarnContext(ctx, "entity integrity gap", "id", id, "missing", missing)
	return gap
}

// UserID returns the id of the live user entity named username.
func (s *Store) UserID(ctx context.Context, username string, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, s.memo, strata.Key("entity", "user_id", username), l.Fresh,
		func(ctx context.Context) (strata.ID, error) {
			row, err := query.New().
				AddTable("u", strata.TableEntity).
				AddTable("ut", strata.TableEntity).
				AddField("u", "id").
				Where(
					sqldsl.Eq{Left: col("u", "name"), Right: sqldsl.Lit(username)},
					sqldsl.Eq{Left: col("ut", "unique_name"), Right: sqldsl.Lit("user")},
					sqldsl.Eq{Left: col("ut", "id"), Right: col("u", "type")},
					sqldsl.Eq{Left: col("u", "state"), Right: sqldsl.Lit(strata.StateLive.String())},
				).
				OrderBy(col("u", "id")).
				SetNum(1, 0).
				First(ctx, s.q)
			if err != nil {
				return 0, fmt.Errorf("user id %q: %w", username, err)
			}
			if row == nil {
				return 0, strata.NotFound("user", username)
			}
			return row.IDField("id"), nil
		})
}

// ByUniqueNames loads the entities carrying the given unique names, keyed by
// name. Names that resolve to nothing are left out; integrity gaps are
// returned as errors.
func (s *Store) ByUniqueNames(ctx context.Context, names []string, opts ...strata.LookupOption) (map[string]strata.Entity, error) {
	out := make(map[string]strata.Entity, len(names))
	quiet := append(append([]strata.LookupOption(nil), opts...), strata.Quiet())
	for _, name := range names {
		id, err := s.cat.IDOf(ctx, name, quiet...)
		if strata.IsNotFoundErr(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		e, err := s.GetByID(ctx, id, opts...)
		if strata.IsNotFoundErr(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = e
	}
	return out, nil
}

// joinTables adds every table with all of its columns, linking auxiliary
// tables to the entity table by id.
func joinTables(sel *query.Selector, tables []string) *query.Selector {
	for _, t := range tables {
		sel.AddTable(t).AddField(t, "*")
		if t != strata.TableEntity {
			sel.Where(sqldsl.Eq{Left: col(strata.TableEntity, "id"), Right: col(t, "id")})
		}
	}
	return sel
}

func col(table, column string) sqldsl.Col {
	return sqldsl.Col{Table: table, Column: column}
}

func idLit(id strata.ID) sqldsl.Int {
	return sqldsl.Int(int64(id))
}
