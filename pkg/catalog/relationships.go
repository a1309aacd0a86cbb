package catalog

import (
	"context"
	"fmt"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/query"
	"github.com/pthm/strata/pkg/sqldsl"
)

// AllowableRelationship declares a kind of edge from entities of type A to
// entities of type B.
type AllowableRelationship struct {
	ID             strata.ID `json:"id"`
	Name           string    `json:"name"`
	TypeA          strata.ID `json:"relationship_a"`
	TypeB          strata.ID `json:"relationship_b"`
	Connections    string    `json:"connections,omitempty"`
	Directionality string    `json:"directionality,omitempty"`
}

func allowableFromRow(row strata.Row) AllowableRelationship {
	return AllowableRelationship{
		ID:             row.IDField("id"),
		Name:           row.String("name"),
		TypeA:          row.IDField("relationship_a"),
		TypeB:          row.IDField("relationship_b"),
		Connections:    row.String("connections"),
		Directionality: row.String("directionality"),
	}
}

// RelationshipID resolves an allowable relationship name to its id. Names
// are not unique across type pairs; the lowest id wins. Results are cached
// per name.
func (c *Catalog) RelationshipID(ctx context.Context, name string, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	id, err := strata.Remember(ctx, c.memo, strata.Key("catalog", "relationship_id", name), l.Fresh,
		func(ctx context.Context) (strata.ID, error) {
			return c.firstAllowable(ctx, "relationship "+name,
				sqldsl.Eq{Left: col("ar", "name"), Right: sqldsl.Lit(name)})
		})
	if strata.IsNotFoundErr(err) {
		c.notFound(ctx, l, "relationship", name)
	}
	return id, err
}

// RelationshipName returns the name of allowable relationship id.
func (c *Catalog) RelationshipName(ctx context.Context, id strata.ID, opts ...strata.LookupOption) (string, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, c.memo, strata.Key("catalog", "relationship_name", id), l.Fresh,
		func(ctx context.Context) (string, error) {
			row, err := query.New().
				AddTable("ar", strata.TableAllowableRelationship).
				AddField("ar", "name").
				Where(sqldsl.Eq{Left: col("ar", "id"), Right: idLit(id)}).
				First(ctx, c.q)
			if err != nil {
				return "", fmt.Errorf("relationship name %d: %w", id, err)
			}
			if row == nil {
				return "", strata.NotFound("relationship", id)
			}
			return row.String("name"), nil
		})
}

// OwnsRelationshipID returns the owns relationship from sites to typeID.
func (c *Catalog) OwnsRelationshipID(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) (strata.ID, error) {
	return c.siteRelationshipID(ctx, RelOwns, typeID, opts...)
}

// BorrowRelationshipID returns the borrows relationship from sites to typeID.
func (c *Catalog) BorrowRelationshipID(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) (strata.ID, error) {
	return c.siteRelationshipID(ctx, RelBorrows, typeID, opts...)
}

func (c *Catalog) siteRelationshipID(ctx context.Context, name string, typeID strata.ID, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, c.memo, strata.Key("catalog", name+"_relationship", typeID), l.Fresh,
		func(ctx context.Context) (strata.ID, error) {
			site, err := c.TypeID(ctx, SiteTypeName, opts...)
			if err != nil {
				return 0, err
			}
			return c.firstAllowable(ctx, fmt.Sprintf("site %s type %d", name, typeID),
				sqldsl.Eq{Left: col("ar", "name"), Right: sqldsl.Lit(name)},
				sqldsl.Eq{Left: col("ar", "relationship_a"), Right: idLit(site)},
				sqldsl.Eq{Left: col("ar", "relationship_b"), Right: idLit(typeID)},
			)
		})
}

// ParentRelationshipID returns the relationship that arranges entities of
// typeID into a tree: a relationship from the type to itself whose name
// contains "parent".
func (c *Catalog) ParentRelationshipID(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) (strata.ID, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, c.memo, strata.Key("catalog", "parent_relationship", typeID), l.Fresh,
		func(ctx context.Context) (strata.ID, error) {
			return c.firstAllowable(ctx, fmt.Sprintf("parent relationship for type %d", typeID),
				sqldsl.Like{Expr: col("ar", "name"), Pattern: sqldsl.Lit("%parent%")},
				sqldsl.Eq{Left: col("ar", "relationship_a"), Right: idLit(typeID)},
				sqldsl.Eq{Left: col("ar", "relationship_b"), Right: idLit(typeID)},
			)
		})
}

// AllowableRelationshipsForType returns every allowable relationship with
// typeID on either side, ordered by id.
func (c *Catalog) AllowableRelationshipsForType(ctx context.Context, typeID strata.ID, opts ...strata.LookupOption) ([]AllowableRelationship, error) {
	l := strata.NewLookup(opts...)
	rels, err := strata.Remember(ctx, c.memo, strata.Key("catalog", "allowable_for_type", typeID), l.Fresh,
		func(ctx context.Context) ([]AllowableRelationship, error) {
			rows, err := query.New().
				AddTable("ar", strata.TableAllowableRelationship).
				AddField("ar", "*").
				Where(sqldsl.Or(
					sqldsl.Eq{Left: col("ar", "relationship_a"), Right: idLit(typeID)},
					sqldsl.Eq{Left: col("ar", "relationship_b"), Right: idLit(typeID)},
				)).
				OrderBy(col("ar", "id")).
				Run(ctx, c.q)
			if err != nil {
				return nil, fmt.Errorf("allowable relationships for type %d: %w", typeID, err)
			}
			out := make([]AllowableRelationship, len(rows))
			for i, row := range rows {
				out[i] = allowableFromRow(row)
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}
	return append([]AllowableRelationship(nil), rels...), nil
}

func (c *Catalog) firstAllowable(ctx context.Context, what string, conds ...sqldsl.Expr) (strata.ID, error) {
	row, err := query.New().
		AddTable("ar", strata.TableAllowableRelationship).
		AddField("ar", "id").
		Where(conds...).
		OrderBy(col("ar", "id")).
		SetNum(1, 0).
		First(ctx, c.q)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	if row == nil {
		return 0, strata.NotFound("allowable relationship", what)
	}
	return row.IDField("id"), nil
}
