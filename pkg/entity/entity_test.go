package entity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/strata"
	"github.com/pthm/strata/internal/testutil"
	"github.com/pthm/strata/pkg/catalog"
	"github.com/pthm/strata/pkg/entity"
)

func newStore(t *testing.T) (*entity.Store, strata.Execer) {
	t.Helper()
	db := testutil.SQLite(t)
	cache := strata.NewMemoryCache()
	cat := catalog.New(db, catalog.WithCache(cache))
	return entity.New(db, cat, entity.WithCache(cache)), db
}

func TestGetByID(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	e, err := s.GetByID(ctx, testutil.Logo)
	require.NoError(t, err)

	assert.Equal(t, testutil.Logo, e.ID())
	assert.Equal(t, testutil.TypeImage, e.Type())
	assert.Equal(t, "Logo", e.Name())
	assert.Equal(t, "logo", e.UniqueName())
	assert.Equal(t, strata.StateLive, e.State())
	assert.Equal(t, strata.ID(120), e.IDField("width"))
	assert.Equal(t, "Company logo", e.String("description"))
}

func TestGetByIDEntityTableOnly(t *testing.T) {
	s, _ := newStore(t)

	e, err := s.GetByID(context.Background(), testutil.Alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Name())
	assert.False(t, e.Has("width"))
}

func TestGetByIDNotFound(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.GetByID(context.Background(), 9999)
	assert.True(t, strata.IsNotFoundErr(err))
	assert.False(t, strata.IsIntegrityGapErr(err))
}

func TestGetByIDZeroPanics(t *testing.T) {
	s, _ := newStore(t)
	assert.Panics(t, func() {
		_, _ = s.GetByID(context.Background(), 0)
	})
}

func TestGetByIDIntegrityGap(t *testing.T) {
	tests := []struct {
		name     string
		id       strata.ID
		breakSQL string
		table    string
		want     string
	}{
		{
			name:     "missing auxiliary row",
			id:       testutil.Banner,
			breakSQL: "DELETE FROM image WHERE id = 43",
			table:    "image",
			want:     "Banner",
		},
		{
			name:     "missing auxiliary table",
			id:       testutil.TinyMCE,
			breakSQL: "DROP TABLE html_editor",
			table:    "html_editor",
			want:     "TinyMCE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db := newStore(t)
			testutil.Exec(t, db, tt.breakSQL)

			_, err := s.GetByID(context.Background(), tt.id)
			require.Error(t, err)
			assert.True(t, strata.IsIntegrityGapErr(err))

			var gap *strata.IntegrityGapError
			require.True(t, errors.As(err, &gap))
			assert.Equal(t, tt.id, gap.ID)
			assert.Equal(t, []string{tt.table}, gap.Tables)
			assert.Equal(t, tt.want, gap.Partial.Name())
		})
	}
}

func TestGetByIDCaching(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	e, err := s.GetByID(ctx, testutil.Logo)
	require.NoError(t, err)
	e["name"] = "mutated"

	testutil.Exec(t, db, "UPDATE entity SET name = 'Renamed' WHERE id = 42")

	e, err = s.GetByID(ctx, testutil.Logo)
	require.NoError(t, err)
	assert.Equal(t, "Logo", e.Name(), "cached copy is unaffected by caller mutation and store updates")

	e, err = s.GetByID(ctx, testutil.Logo, strata.Fresh())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", e.Name())
}

func TestUserID(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	id, err := s.UserID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, testutil.Alice, id)

	_, err = s.UserID(ctx, "dave")
	assert.True(t, strata.IsNotFoundErr(err), "deleted users are not found")

	_, err = s.UserID(ctx, "o'brien")
	assert.True(t, strata.IsNotFoundErr(err))
}

func TestByUniqueNames(t *testing.T) {
	s, _ := newStore(t)

	got, err := s.ByUniqueNames(context.Background(), []string{"logo", "site_one", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testutil.Logo, got["logo"].ID())
	assert.Equal(t, "https://one.example.edu/", got["site_one"].String("base_url"))
}
