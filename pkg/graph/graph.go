// Package graph answers traversal and membership questions over the typed
// relationship edges: what an entity points at, which site owns or borrows
// it, and whether two entities are related by a given kind of edge.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/query"
	"github.com/pthm/strata/pkg/sqldsl"
)

// Relationship names the graph queries by.
const (
	RelOwns       = "owns"
	RelBorrows    = "borrows"
	RelSiteToUser = "site_to_user"
	RelSiteShares = "site_shares_type"
)

// Loader loads entities by id. *entity.Store satisfies it.
type Loader interface {
	GetByID(ctx context.Context, id strata.ID, opts ...strata.LookupOption) (strata.Entity, error)
}

// Edge is one relationship row.
type Edge struct {
	ID   strata.ID `json:"id"`
	A    strata.ID `json:"entity_a"`
	B    strata.ID `json:"entity_b"`
	Kind strata.ID `json:"type"`
}

// Kind selects edges by allowable relationship. Use KindName to match every
// allowable relationship with a name, or KindID for exactly one.
type Kind interface {
	predicate() sqldsl.Expr
	String() string
}

// KindName matches edges whose allowable relationship has this name. Names
// are not unique across type pairs, so one name may match several kinds.
type KindName string

func (k KindName) predicate() sqldsl.Expr {
	return sqldsl.Eq{Left: col("ar", "name"), Right: sqldsl.Lit(string(k))}
}

func (k KindName) String() string { return string(k) }

// KindID matches edges of exactly one allowable relationship.
type KindID strata.ID

func (k KindID) predicate() sqldsl.Expr {
	return sqldsl.Eq{Left: col("r", "type"), Right: sqldsl.Int(int64(k))}
}

func (k KindID) String() string { return strata.ID(k).String() }

// Graph queries relationship edges. It is safe for concurrent use.
type Graph struct {
	q      strata.Querier
	loader Loader
	memo   *strata.Memo
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithCache sets the cache SiteSharesType and UserCanEditSite memoize in.
func WithCache(c strata.Cache) Option {
	return func(g *Graph) {
		g.memo = strata.NewMemo(c)
	}
}

// WithLogger sets the graph's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Graph reading edges from q and loading entities through
// loader.
func New(q strata.Querier, loader Loader, opts ...Option) *Graph {
	g := &Graph{
		q:      q,
		loader: loader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.memo == nil {
		g.memo = strata.NewMemo(nil)
	}
	return g
}

// edgeSelector selects edges matching conds, in relationship id order. The
// relationship table is aliased r and allowable_relationship ar.
func edgeSelector(conds ...sqldsl.Expr) *query.Selector {
	return query.New().
		AddTable("r", strata.TableRelationship).
		AddTable("ar", strata.TableAllowableRelationship).
		AddField("r", "id").
		AddField("r", "entity_a").
		AddField("r", "entity_b").
		AddField("r", "type").
		Where(sqldsl.Eq{Left: col("r", "type"), Right: col("ar", "id")}).
		Where(conds...).
		OrderBy(col("r", "id"))
}

func (g *Graph) run(ctx context.Context, what string, sel *query.Selector) ([]Edge, error) {
	rows, err := sel.Run(ctx, g.q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	out := make([]Edge, len(rows))
	for i, row := range rows {
		out[i] = Edge{
			ID:   row.IDField("id"),
			A:    row.IDField("entity_a"),
			B:    row.IDField("entity_b"),
			Kind: row.IDField("type"),
		}
	}
	return out, nil
}

func (g *Graph) edges(ctx context.Context, what string, limit int, conds ...sqldsl.Expr) ([]Edge, error) {
	return g.run(ctx, what, edgeSelector(conds...).SetNum(limit, 0))
}

func (g *Graph) exists(ctx context.Context, what string, conds ...sqldsl.Expr) (bool, error) {
	edges, err := g.edges(ctx, what, 1, conds...)
	if err != nil {
		return false, err
	}
	return len(edges) > 0, nil
}

// existsWithLiveB is exists restricted to edges whose b side is live.
func (g *Graph) existsWithLiveB(ctx context.Context, what string, conds ...sqldsl.Expr) (bool, error) {
	sel := edgeSelector(conds...).
		AddTable("b", strata.TableEntity).
		Where(
			sqldsl.Eq{Left: col("b", "id"), Right: col("r", "entity_b")},
			sqldsl.Eq{Left: col("b", "state"), Right: sqldsl.Lit(strata.StateLive.String())},
		).
		SetNum(1, 0)
	edges, err := g.run(ctx, what, sel)
	if err != nil {
		return false, err
	}
	return len(edges) > 0, nil
}

// EdgesFrom returns every outgoing edge of id.
func (g *Graph) EdgesFrom(ctx context.Context, id strata.ID) ([]Edge, error) {
	return g.edges(ctx, fmt.Sprintf("edges from %d", id), 0,
		sqldsl.Eq{Left: col("r", "entity_a"), Right: idLit(id)})
}

// AssociationsOf returns the b side of every outgoing edge of id, of any
// kind, in edge order without duplicates.
func (g *Graph) AssociationsOf(ctx context.Context, id strata.ID) ([]strata.ID, error) {
	edges, err := g.EdgesFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]strata.ID, 0, len(edges))
	seen := make(map[strata.ID]bool, len(edges))
	for _, e := range edges {
		if !seen[e.B] {
			seen[e.B] = true
			out = append(out, e.B)
		}
	}
	return out, nil
}

// AssociationsByKind maps the a side of every edge of kind to all of its b
// sides, in edge order. Several edges from one entity all survive.
func (g *Graph) AssociationsByKind(ctx context.Context, kind Kind) (map[strata.ID][]strata.ID, error) {
	edges, err := g.edges(ctx, "associations of kind "+kind.String(), 0, kind.predicate())
	if err != nil {
		return nil, err
	}
	return group(edges), nil
}

// AssociationsBetweenTypes maps a to b for every edge whose allowable
// relationship runs from typeA to typeB, whatever its name.
func (g *Graph) AssociationsBetweenTypes(ctx context.Context, typeA, typeB strata.ID) (map[strata.ID][]strata.ID, error) {
	edges, err := g.edges(ctx, fmt.Sprintf("associations from type %d to %d", typeA, typeB), 0,
		sqldsl.Eq{Left: col("ar", "relationship_a"), Right: idLit(typeA)},
		sqldsl.Eq{Left: col("ar", "relationship_b"), Right: idLit(typeB)},
	)
	if err != nil {
		return nil, err
	}
	return group(edges), nil
}

// Targets returns the b side of every edge of kind leaving a, in edge order.
func (g *Graph) Targets(ctx context.Context, a strata.ID, kind Kind) ([]strata.ID, error) {
	edges, err := g.edges(ctx, fmt.Sprintf("targets of %d by %s", a, kind), 0,
		kind.predicate(),
		sqldsl.Eq{Left: col("r", "entity_a"), Right: idLit(a)},
	)
	if err != nil {
		return nil, err
	}
	out := make([]strata.ID, len(edges))
	for i, e := range edges {
		out[i] = e.B
	}
	return out, nil
}

// HasRelation reports whether an edge of kind runs from a to b.
func (g *Graph) HasRelation(ctx context.Context, a, b strata.ID, kind Kind) (bool, error) {
	return g.exists(ctx, fmt.Sprintf("relation %d -%s-> %d", a, kind, b),
		kind.predicate(),
		sqldsl.Eq{Left: col("r", "entity_a"), Right: idLit(a)},
		sqldsl.Eq{Left: col("r", "entity_b"), Right: idLit(b)},
	)
}

func group(edges []Edge) map[strata.ID][]strata.ID {
	out := make(map[strata.ID][]strata.ID)
	for _, e := range edges {
		out[e.A] = append(out[e.A], e.B)
	}
	return out
}

func col(table, column string) sqldsl.Col {
	return sqldsl.Col{Table: table, Column: column}
}

func idLit(id strata.ID) sqldsl.Int {
	return sqldsl.Int(int64(id))
}
