package editor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/testutil"
	"github.com/pthm/strata/pkg/catalog"
	"github.com/pthm/strata/pkg/editor"
	"github.com/pthm/strata/pkg/entity"
	"github.com/pthm/strata/pkg/graph"
)

type fakeIntegration struct{ name string }

func (f fakeIntegration) Name() string            { return f.name }
func (f fakeIntegration) ElementType() string     { return "fake" }
func (f fakeIntegration) Options() map[string]any { return map[string]any{"x": 1} }

func newResolver(t *testing.T, reg *editor.Registry, opts ...editor.Option) (*editor.Resolver, strata.Execer) {
	t.Helper()
	db := testutil.SQLite(t)
	cat := catalog.New(db)
	store := entity.New(db, cat)
	return editor.NewResolver(graph.New(db, store), store, reg, opts...), db
}

func TestRegistry(t *testing.T) {
	reg := editor.NewRegistry()
	assert.Equal(t, []string{"plain", "tiny_mce"}, reg.Keys())

	assert.Equal(t, "plain", reg.New("plain").Name())
	assert.Equal(t, "textarea", reg.New("plain").ElementType())
	assert.Equal(t, "plain", reg.New("unknown").Name(), "unknown keys fall back to plain")

	reg.Register("loki", func() editor.Integration { return fakeIntegration{name: "loki"} })
	assert.True(t, reg.Has("loki"))
	assert.Equal(t, "loki", reg.New("loki").Name())
	assert.Equal(t, map[string]any{"x": 1}, reg.New("loki").Options())
}

func TestForSite(t *testing.T) {
	r, _ := newResolver(t, nil)
	ctx := context.Background()

	ed, err := r.ForSite(ctx, testutil.SiteOne)
	require.NoError(t, err)
	assert.Equal(t, editor.TinyMCE, ed.Name())

	ed, err = r.ForSite(ctx, testutil.SiteTwo)
	require.NoError(t, err)
	assert.Equal(t, editor.Plain, ed.Name(), "no editor linked")
}

func TestForSiteDefault(t *testing.T) {
	reg := editor.NewRegistry()
	reg.Register("loki", func() editor.Integration { return fakeIntegration{name: "loki"} })
	r, _ := newResolver(t, reg, editor.WithDefault("loki"))

	ed, err := r.ForSite(context.Background(), testutil.SiteTwo)
	require.NoError(t, err)
	assert.Equal(t, "loki", ed.Name())
}

func TestForSiteUnregisteredKey(t *testing.T) {
	r, db := newResolver(t, nil)
	testutil.Exec(t, db, "UPDATE html_editor SET html_editor_filename = 'fckeditor.php' WHERE id = 60")

	key, err := r.KeyForSite(context.Background(), testutil.SiteOne)
	require.NoError(t, err)
	assert.Equal(t, "fckeditor", key)

	ed, err := r.ForSite(context.Background(), testutil.SiteOne)
	require.NoError(t, err)
	assert.Equal(t, editor.Plain, ed.Name())
}

func TestKeyForSiteIncompleteEditor(t *testing.T) {
	r, db := newResolver(t, nil)
	testutil.Exec(t, db, "DELETE FROM html_editor WHERE id = 60")

	key, err := r.KeyForSite(context.Background(), testutil.SiteOne)
	require.NoError(t, err)
	assert.Equal(t, editor.Plain, key)
}

func TestKeyForSiteCaching(t *testing.T) {
	r, db := newResolver(t, nil)
	ctx := context.Background()

	key, err := r.KeyForSite(ctx, testutil.SiteTwo)
	require.NoError(t, err)
	assert.Equal(t, editor.Plain, key)

	testutil.Exec(t, db, "INSERT INTO relationship (id, entity_a, entity_b, type) VALUES (241, 41, 60, 105)")

	key, err = r.KeyForSite(ctx, testutil.SiteTwo)
	require.NoError(t, err)
	assert.Equal(t, editor.Plain, key)

	key, err = r.KeyForSite(ctx, testutil.SiteTwo, strata.Fresh())
	require.NoError(t, err)
	assert.Equal(t, editor.TinyMCE, key)
}
