package entity

import (
	"context"
	"fmt"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/query"
	"github.com/pthm/strata/pkg/sqldsl"
)

// Sharing selects which site relationships scope a type query.
type Sharing int

const (
	SharingOwns Sharing = iota + 1
	SharingBorrows
	SharingOwnsOrBorrows
)

func (s Sharing) String() string {
	switch s {
	case SharingOwns:
		return "owns"
	case SharingBorrows:
		return "borrows"
	case SharingOwnsOrBorrows:
		return "owns_or_borrows"
	default:
		return fmt.Sprintf("Sharing(%d)", int(s))
	}
}

// ParseSharing parses the String form of a Sharing.
func ParseSharing(s string) (Sharing, error) {
	for _, v := range []Sharing{SharingOwns, SharingBorrows, SharingOwnsOrBorrows} {
		if v.String() == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("entity: unknown sharing mode %q", s)
}

type edge struct {
	other strata.ID
	rel   strata.ID
}

// selection is the accumulated state of SelectOptions.
type selection struct {
	sites   []strata.ID
	sharing Sharing
	only    []string
	except  []string
	states  []string
	from    []edge
	to      []edge
	where   []sqldsl.Expr
	order   []sqldsl.Expr
	limit   int
	offset  int
}

// SelectOption narrows a GetByType query.
type SelectOption func(*selection)

// WithSite restricts results to entities related to any of siteIDs by the
// given sharing mode.
func WithSite(sharing Sharing, siteIDs ...strata.ID) SelectOption {
	return func(s *selection) {
		s.sharing = sharing
		s.sites = append(s.sites, siteIDs...)
	}
}

// OnlyTables joins just the named tables instead of all of the type's
// tables. The entity table is always joined.
func OnlyTables(tables ...string) SelectOption {
	return func(s *selection) {
		s.only = append(s.only, tables...)
	}
}

// ExceptTables leaves the named tables out of the join. The entity table
// cannot be left out.
func ExceptTables(tables ...string) SelectOption {
	return func(s *selection) {
		s.except = append(s.except, tables...)
	}
}

// WithState restricts results to entities in one of the given states.
func WithState(states ...strata.State) SelectOption {
	return func(s *selection) {
		for _, st := range states {
			s.states = append(s.states, st.String())
		}
	}
}

// RelatedFrom restricts results to entities on the b side of a rel edge
// whose a side is a.
func RelatedFrom(a, rel strata.ID) SelectOption {
	return func(s *selection) {
		s.from = append(s.from, edge{other: a, rel: rel})
	}
}

// RelatedTo restricts results to entities on the a side of a rel edge
// whose b side is b.
func RelatedTo(b, rel strata.ID) SelectOption {
	return func(s *selection) {
		s.to = append(s.to, edge{other: b, rel: rel})
	}
}

// Where adds a predicate. Columns of the entity table are qualified with
// "entity", auxiliary columns with their table name.
func Where(exprs ...sqldsl.Expr) SelectOption {
	return func(s *selection) {
		s.where = append(s.where, exprs...)
	}
}

// Limit returns at most count entities, skipping offset. A count of zero or
// less returns every entity after offset.
func Limit(count, offset int) SelectOption {
	return func(s *selection) {
		s.limit = count
		s.offset = offset
	}
}

// OrderBy sets the result order. The default is by entity id.
func OrderBy(exprs ...sqldsl.Expr) SelectOption {
	return func(s *selection) {
		s.order = append(s.order, exprs...)
	}
}

// GetByType loads the entities of typeID, keyed by id. No state filter is
// applied unless WithState is given.
func (s *Store) GetByType(ctx context.Context, typeID strata.ID, opts ...SelectOption) (map[strata.ID]strata.Entity, error) {
	list, err := s.ListByType(ctx, typeID, opts...)
	if err != nil {
		return nil, err
	}
	out := make(map[strata.ID]strata.Entity, len(list))
	for _, e := range list {
		out[e.ID()] = e
	}
	return out, nil
}

// ListByType is GetByType preserving result order.
func (s *Store) ListByType(ctx context.Context, typeID strata.ID, opts ...SelectOption) ([]strata.Entity, error) {
	sel, ok, err := s.selectorForType(ctx, typeID, opts...)
	if err != nil || !ok {
		return nil, err
	}
	rows, err := sel.Run(ctx, s.q)
	if err != nil {
		return nil, fmt.Errorf("entities of type %d: %w", typeID, err)
	}
	out := make([]strata.Entity, len(rows))
	for i, row := range rows {
		out[i] = strata.Entity(row)
	}
	return out, nil
}

func (s *Store) selectorForType(ctx context.Context, typeID strata.ID, opts ...SelectOption) (*query.Selector, bool, error) {
	strata.MustID("GetByType", typeID)

	var opt selection
	for _, o := range opts {
		if o != nil {
			o(&opt)
		}
	}

	tables, err := s.cat.TablesForType(ctx, typeID)
	if err != nil {
		return nil, false, err
	}

	sel := joinTables(query.New(), filterTables(tables, opt.only, opt.except)).
		Where(sqldsl.Eq{Left: col(strata.TableEntity, "type"), Right: idLit(typeID)})

	if len(opt.states) > 0 {
		sel.Where(sqldsl.In{Expr: col(strata.TableEntity, "state"), Values: opt.states})
	}

	if len(opt.sites) > 0 {
		rels, err := s.sharingRelationships(ctx, typeID, opt.sharing)
		if err != nil {
			return nil, false, err
		}
		if len(rels) == 0 {
			return nil, false, nil
		}
		sel.AddTable("site_rel", strata.TableRelationship).
			Where(
				sqldsl.Eq{Left: col("site_rel", "entity_b"), Right: col(strata.TableEntity, "id")},
				sqldsl.InInt{Expr: col("site_rel", "entity_a"), Values: ids(opt.sites)},
				sqldsl.InInt{Expr: col("site_rel", "type"), Values: rels},
			).
			Distinct()
	}

	for i, e := range opt.from {
		alias := fmt.Sprintf("rel_from_%d", i)
		sel.AddTable(alias, strata.TableRelationship).
			Where(
				sqldsl.Eq{Left: col(alias, "entity_a"), Right: idLit(e.other)},
				sqldsl.Eq{Left: col(alias, "entity_b"), Right: col(strata.TableEntity, "id")},
				sqldsl.Eq{Left: col(alias, "type"), Right: idLit(e.rel)},
			)
	}
	for i, e := range opt.to {
		alias := fmt.Sprintf("rel_to_%d", i)
		sel.AddTable(alias, strata.TableRelationship).
			Where(
				sqldsl.Eq{Left: col(alias, "entity_a"), Right: col(strata.TableEntity, "id")},
				sqldsl.Eq{Left: col(alias, "entity_b"), Right: idLit(e.other)},
				sqldsl.Eq{Left: col(alias, "type"), Right: idLit(e.rel)},
			)
	}

	sel.Where(opt.where...)
	if len(opt.order) > 0 {
		sel.OrderBy(opt.order...)
	} else {
		sel.OrderBy(col(strata.TableEntity, "id"))
	}
	sel.SetNum(opt.limit, opt.offset)
	return sel, true, nil
}

// sharingRelationships resolves the site relationships for typeID that the
// sharing mode admits. A type with no such relationship contributes none.
func (s *Store) sharingRelationships(ctx context.Context, typeID strata.ID, sharing Sharing) ([]int64, error) {
	var lookups []func(context.Context, strata.ID, ...strata.LookupOption) (strata.ID, error)
	switch sharing {
	case SharingOwns:
		lookups = append(lookups, s.cat.OwnsRelationshipID)
	case SharingBorrows:
		lookups = append(lookups, s.cat.BorrowRelationshipID)
	case SharingOwnsOrBorrows:
		lookups = append(lookups, s.cat.OwnsRelationshipID, s.cat.BorrowRelationshipID)
	default:
		panic(strata.MisuseError{Op: "WithSite", Reason: "unknown sharing mode " + sharing.String()})
	}

	var rels []int64
	for _, lookup := range lookups {
		id, err := lookup(ctx, typeID)
		if strata.IsNotFoundErr(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rels = append(rels, int64(id))
	}
	return rels, nil
}

// filterTables applies OnlyTables and ExceptTables, keeping the entity
// table and the type's table order.
func filterTables(tables, only, except []string) []string {
	if len(only) == 0 && len(except) == 0 {
		return tables
	}
	keep := func(t string) bool {
		if t == strata.TableEntity {
			return true
		}
		if len(only) > 0 && !contains(only, t) {
			return false
		}
		return !contains(except, t)
	}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func ids(in []strata.ID) []int64 {
	out := make([]int64, len(in))
	for i, id := range in {
		out[i] = int64(id)
	}
	return out
}
