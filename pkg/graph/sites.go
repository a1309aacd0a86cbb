package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/sqldsl"
)

// Owns reports whether site owns id.
func (g *Graph) Owns(ctx context.Context, site, id strata.ID) (bool, error) {
	return g.HasRelation(ctx, site, id, KindName(RelOwns))
}

// Borrows reports whether site borrows id. A site never borrows what it
// owns, so Owns and Borrows are never both true for one pair.
func (g *Graph) Borrows(ctx context.Context, site, id strata.ID) (bool, error) {
	return g.HasRelation(ctx, site, id, KindName(RelBorrows))
}

// OwningSiteOf returns the site that owns id, or strata.ErrNotFound.
func (g *Graph) OwningSiteOf(ctx context.Context, id strata.ID) (strata.ID, error) {
	edges, err := g.edges(ctx, fmt.Sprintf("owner of %d", id), 1,
		KindName(RelOwns).predicate(),
		sqldsl.Eq{Left: col("r", "entity_b"), Right: idLit(id)},
	)
	if err != nil {
		return 0, err
	}
	if len(edges) == 0 {
		return 0, strata.NotFound("owning site of", id)
	}
	return edges[0].A, nil
}

// BorrowingSitesOf returns the sites that borrow id, keyed by site id. It is
// empty, not an error, when nothing borrows id. A site with missing auxiliary
// rows is returned as its partial entity.
func (g *Graph) BorrowingSitesOf(ctx context.Context, id strata.ID) (map[strata.ID]strata.Entity, error) {
	edges, err := g.edges(ctx, fmt.Sprintf("borrowers of %d", id), 0,
		KindName(RelBorrows).predicate(),
		sqldsl.Eq{Left: col("r", "entity_b"), Right: idLit(id)},
	)
	if err != nil {
		return nil, err
	}

	out := make(map[strata.ID]strata.Entity, len(edges))
	for _, e := range edges {
		if _, ok := out[e.A]; ok {
			continue
		}
		site, err := g.loader.GetByID(ctx, e.A)
		var gap *strata.IntegrityGapError
		if errors.As(err, &gap) {
			g.logger.WarnContext(ctx, "borrowing site incomplete", "site", e.A, "tables", gap.Tables)
			out[e.A] = gap.Partial
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("borrowers of %d: %w", id, err)
		}
		out[e.A] = site
	}
	return out, nil
}

// SiteSharesType reports whether site shares entities of typeID with other
// sites. Results are cached per pair.
func (g *Graph) SiteSharesType(ctx context.Context, site, typeID strata.ID, opts ...strata.LookupOption) (bool, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, g.memo, strata.Key("graph", "site_shares_type", site, typeID), l.Fresh,
		func(ctx context.Context) (bool, error) {
			return g.HasRelation(ctx, site, typeID, KindName(RelSiteShares))
		})
}

// UserCanEditSite reports whether a live user is attached to site by a
// site_to_user edge. Results are cached per pair.
func (g *Graph) UserCanEditSite(ctx context.Context, user, site strata.ID, opts ...strata.LookupOption) (bool, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, g.memo, strata.Key("graph", "user_can_edit_site", user, site), l.Fresh,
		func(ctx context.Context) (bool, error) {
			return g.existsWithLiveB(ctx, fmt.Sprintf("user %d on site %d", user, site),
				KindName(RelSiteToUser).predicate(),
				sqldsl.Eq{Left: col("r", "entity_a"), Right: idLit(site)},
				sqldsl.Eq{Left: col("r", "entity_b"), Right: idLit(user)},
			)
		})
}
