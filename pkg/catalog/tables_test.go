package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/testutil"
)

func TestTablesForType(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		typeID strata.ID
		want   []string
	}{
		{name: "image", typeID: testutil.TypeImage, want: []string{"entity", "image"}},
		{name: "site", typeID: testutil.TypeSite, want: []string{"entity", "site"}},
		{name: "html editor", typeID: testutil.TypeHTMLEditor, want: []string{"entity", "html_editor"}},
		{name: "no tables", typeID: testutil.TypeUser, want: []string{"entity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.TablesForType(ctx, tt.typeID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTablesForTypeDeduplicates(t *testing.T) {
	c, db := newCatalog(t)
	testutil.Exec(t, db,
		"INSERT INTO relationship (id, entity_a, entity_b, type) VALUES (203, 6, 21, 100)",
		"INSERT INTO entity (id, name, type, state) VALUES (24, 'image_meta', 2, 'Live')",
		"INSERT INTO relationship (id, entity_a, entity_b, type) VALUES (204, 6, 24, 100)",
	)

	got, err := c.TablesForType(context.Background(), testutil.TypeImage)
	require.NoError(t, err)
	assert.Equal(t, []string{"entity", "image", "image_meta"}, got)
}

func TestTablesForTypeReturnsCopy(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	got, err := c.TablesForType(ctx, testutil.TypeImage)
	require.NoError(t, err)
	got[1] = "mutated"

	again, err := c.TablesForType(ctx, testutil.TypeImage)
	require.NoError(t, err)
	assert.Equal(t, []string{"entity", "image"}, again)
}

func TestTablesForEntity(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	got, err := c.TablesForEntity(ctx, testutil.Logo)
	require.NoError(t, err)
	assert.Equal(t, []string{"entity", "image"}, got)

	got, err = c.TablesForEntity(ctx, testutil.SiteOne)
	require.NoError(t, err)
	assert.Equal(t, []string{"entity", "site"}, got)

	got, err = c.TablesForEntity(ctx, 9999)
	require.NoError(t, err)
	assert.Equal(t, []string{"entity"}, got)
}

func TestTablesZeroIDPanics(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	assert.PanicsWithValue(t, strata.MisuseError{Op: "TablesForType", Reason: "called with id 0"}, func() {
		_, _ = c.TablesForType(ctx, 0)
	})
	assert.PanicsWithValue(t, strata.MisuseError{Op: "TablesForEntity", Reason: "called with id 0"}, func() {
		_, _ = c.TablesForEntity(ctx, 0)
	})
}

func TestTableExists(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	ok, err := c.TableExists(ctx, "image")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TableExists(ctx, "video")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFieldsOfTable(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	fields, err := c.FieldsOfTable(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "width", "height", "description"}, fields)

	_, err = c.FieldsOfTable(ctx, "video")
	assert.True(t, strata.IsMissingTableErr(err), "got %v", err)
	assert.True(t, strata.IsIntegrityGapErr(err))

	_, err = c.FieldsOfTable(ctx, "image; DROP TABLE entity")
	assert.Error(t, err)
}

func TestFieldsOfType(t *testing.T) {
	c, _ := newCatalog(t)

	fields, err := c.FieldsOfType(context.Background(), testutil.TypeSite)
	require.NoError(t, err)
	require.Contains(t, fields, "entity")
	assert.Contains(t, fields["entity"], "unique_name")
	assert.Equal(t, []string{"id", "base_url", "site_state"}, fields["site"])
}

func TestFieldsOfTypeMissingTable(t *testing.T) {
	c, db := newCatalog(t)
	testutil.Exec(t, db, "DROP TABLE html_editor")

	_, err := c.FieldsOfType(context.Background(), testutil.TypeHTMLEditor)
	assert.True(t, strata.IsMissingTableErr(err), "got %v", err)
}

func TestTypes(t *testing.T) {
	c, _ := newCatalog(t)

	types, err := c.Types(context.Background())
	require.NoError(t, err)

	ids := make([]strata.ID, len(types))
	for i, e := range types {
		ids[i] = e.ID()
	}
	assert.Equal(t, []strata.ID{1, 2, 3, 4, 5, 6, 7}, ids)
	assert.Equal(t, "type", types[0].UniqueName())
}

func TestTypeLineage(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := context.Background()

	got, err := c.TypeLineage(ctx, testutil.Logo)
	require.NoError(t, err)
	assert.Equal(t, []strata.ID{testutil.Logo, testutil.TypeImage, testutil.TypeRoot}, got)

	got, err = c.TypeLineage(ctx, testutil.TypeRoot)
	require.NoError(t, err)
	assert.Equal(t, []strata.ID{testutil.TypeRoot}, got)

	_, err = c.TypeLineage(ctx, 9999)
	assert.True(t, strata.IsNotFoundErr(err))
}

func TestTypeLineageCycle(t *testing.T) {
	c, db := newCatalog(t)
	testutil.Exec(t, db,
		"INSERT INTO entity (id, name, type, state) VALUES (70, 'a', 71, 'Live')",
		"INSERT INTO entity (id, name, type, state) VALUES (71, 'b', 70, 'Live')",
	)

	_, err := c.TypeLineage(context.Background(), 70)
	assert.True(t, strata.IsIntegrityGapErr(err), "got %v", err)
}
