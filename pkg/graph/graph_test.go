package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/testutil"
	"github.com/pthm/strata/pkg/catalog"
	"github.com/pthm/strata/pkg/entity"
	"github.com/pthm/strata/pkg/graph"
)

func newGraph(t *testing.T) (*graph.Graph, strata.Execer) {
	t.Helper()
	db := testutil.SQLite(t)
	cache := strata.NewMemoryCache()
	cat := catalog.New(db, catalog.WithCache(cache))
	store := entity.New(db, cat, entity.WithCache(cache))
	return graph.New(db, store, graph.WithCache(cache)), db
}

func TestAssociationsOf(t *testing.T) {
	g, _ := newGraph(t)
	ctx := context.Background()

	got, err := g.AssociationsOf(ctx, testutil.SiteOne)
	require.NoError(t, err)
	assert.Equal(t, []strata.ID{42, 44, 60, 50, 51, 6}, got)

	got, err = g.AssociationsOf(ctx, testutil.Logo)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAssociationsByKind(t *testing.T) {
	g, _ := newGraph(t)
	ctx := context.Background()

	tests := []struct {
		name string
		kind graph.Kind
		want map[strata.ID][]strata.ID
	}{
		{
			name: "name spans type pairs",
			kind: graph.KindName("owns"),
			want: map[strata.ID][]strata.ID{40: {42, 44, 60}, 41: {43}},
		},
		{
			name: "id selects one kind",
			kind: graph.KindID(testutil.RelOwns),
			want: map[strata.ID][]strata.ID{40: {42, 44}, 41: {43}},
		},
		{
			name: "borrows",
			kind: graph.KindName("borrows"),
			want: map[strata.ID][]strata.ID{41: {42}},
		},
		{
			name: "multiple roles for one user survive",
			kind: graph.KindName("user_to_user_role"),
			want: map[strata.ID][]strata.ID{50: {31}, 52: {32, 30}},
		},
		{
			name: "unknown kind",
			kind: graph.KindName("nothing"),
			want: map[strata.ID][]strata.ID{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.AssociationsByKind(ctx, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssociationsBetweenTypes(t *testing.T) {
	g, _ := newGraph(t)

	got, err := g.AssociationsBetweenTypes(context.Background(), testutil.TypeSite, testutil.TypeImage)
	require.NoError(t, err)
	assert.Equal(t, map[strata.ID][]strata.ID{40: {42, 44}, 41: {43, 42}}, got)
}

func TestOwnsAndBorrows(t *testing.T) {
	g, _ := newGraph(t)
	ctx := context.Background()

	tests := []struct {
		site    strata.ID
		id      strata.ID
		owns    bool
		borrows bool
	}{
		{testutil.SiteOne, testutil.Logo, true, false},
		{testutil.SiteTwo, testutil.Logo, false, true},
		{testutil.SiteTwo, testutil.Banner, true, false},
		{testutil.SiteOne, testutil.Banner, false, false},
		{testutil.SiteOne, testutil.TinyMCE, true, false},
	}
	for _, tt := range tests {
		owns, err := g.Owns(ctx, tt.site, tt.id)
		require.NoError(t, err)
		borrows, err := g.Borrows(ctx, tt.site, tt.id)
		require.NoError(t, err)

		assert.Equal(t, tt.owns, owns, "owns(%d, %d)", tt.site, tt.id)
		assert.Equal(t, tt.borrows, borrows, "borrows(%d, %d)", tt.site, tt.id)
		assert.False(t, owns && borrows, "owns and borrows are exclusive")
	}
}

func TestOwningSiteOf(t *testing.T) {
	g, _ := newGraph(t)
	ctx := context.Background()

	site, err := g.OwningSiteOf(ctx, testutil.DraftPhoto)
	require.NoError(t, err)
	assert.Equal(t, testutil.SiteOne, site)

	borrowers, err := g.BorrowingSitesOf(ctx, testutil.DraftPhoto)
	require.NoError(t, err)
	assert.Empty(t, borrowers)

	_, err = g.OwningSiteOf(ctx, testutil.Alice)
	assert.True(t, strata.IsNotFoundErr(err))
}

func TestBorrowingSitesOf(t *testing.T) {
	g, _ := newGraph(t)

	sites, err := g.BorrowingSitesOf(context.Background(), testutil.Logo)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Contains(t, sites, testutil.SiteTwo)
	assert.Equal(t, "Site Two", sites[testutil.SiteTwo].Name())
	assert.Equal(t, "https://two.example.edu/", sites[testutil.SiteTwo].String("base_url"))
}

func TestBorrowingSitesOfIncompleteSite(t *testing.T) {
	g, db := newGraph(t)
	testutil.Exec(t, db, "DELETE FROM site WHERE id = 41")

	sites, err := g.BorrowingSitesOf(context.Background(), testutil.Logo)
	require.NoError(t, err)
	require.Contains(t, sites, testutil.SiteTwo)
	assert.Equal(t, "Site Two", sites[testutil.SiteTwo].Name())
	assert.Empty(t, sites[testutil.SiteTwo].String("base_url"))
}

func TestHasRelation(t *testing.T) {
	g, _ := newGraph(t)
	ctx := context.Background()

	ok, err := g.HasRelation(ctx, testutil.Banner, testutil.Logo, graph.KindName("image_parent"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.HasRelation(ctx, testutil.Logo, testutil.Banner, graph.KindName("image_parent"))
	require.NoError(t, err)
	assert.False(t, ok, "edges are directed")

	ok, err = g.HasRelation(ctx, testutil.SiteOne, testutil.TinyMCE, graph.KindID(testutil.RelSiteToEditor))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSiteSharesType(t *testing.T) {
	g, db := newGraph(t)
	ctx := context.Background()

	ok, err := g.SiteSharesType(ctx, testutil.SiteOne, testutil.TypeImage)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.SiteSharesType(ctx, testutil.SiteTwo, testutil.TypeImage)
	require.NoError(t, err)
	assert.False(t, ok)

	testutil.Exec(t, db, "INSERT INTO relationship (id, entity_a, entity_b, type) VALUES (251, 41, 6, 106)")

	ok, err = g.SiteSharesType(ctx, testutil.SiteTwo, testutil.TypeImage)
	require.NoError(t, err)
	assert.False(t, ok, "cached")

	ok, err = g.SiteSharesType(ctx, testutil.SiteTwo, testutil.TypeImage, strata.Fresh())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserCanEditSite(t *testing.T) {
	g, db := newGraph(t)
	ctx := context.Background()
	testutil.Exec(t, db, "INSERT INTO relationship (id, entity_a, entity_b, type) VALUES (223, 40, 53, 103)")

	tests := []struct {
		name string
		user strata.ID
		site strata.ID
		want bool
	}{
		{"member", testutil.Alice, testutil.SiteOne, true},
		{"member of other site", testutil.Carol, testutil.SiteOne, false},
		{"other site member", testutil.Carol, testutil.SiteTwo, true},
		{"deleted user", testutil.Dave, testutil.SiteOne, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := g.UserCanEditSite(ctx, tt.user, tt.site)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestEdgesFrom(t *testing.T) {
	g, _ := newGraph(t)

	edges, err := g.EdgesFrom(context.Background(), testutil.Carol)
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{
		{ID: 231, A: testutil.Carol, B: testutil.RoleContributor, Kind: testutil.RelUserToRole},
		{ID: 232, A: testutil.Carol, B: testutil.RoleEditor, Kind: testutil.RelUserToRole},
	}, edges)
}

func TestTargets(t *testing.T) {
	g, _ := newGraph(t)

	got, err := g.Targets(context.Background(), testutil.Carol, graph.KindName("user_to_user_role"))
	require.NoError(t, err)
	assert.Equal(t, []strata.ID{testutil.RoleContributor, testutil.RoleEditor}, got)

	got, err = g.Targets(context.Background(), testutil.Bob, graph.KindName("user_to_user_role"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
