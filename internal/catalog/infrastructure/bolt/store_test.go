package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celstore/storefront/internal/catalog/domain"
)

func openStore(t *testing.T, path string) (*Store, func()) {
	t.Helper()
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	s, err := New(db)
	require.NoError(t, err)
	return s, func() { require.NoError(t, db.Close()) }
}

func TestCreateGetDelete(t *testing.T) {
	s, closeDB := openStore(t, filepath.Join(t.TempDir(), "catalog.db"))
	defer closeDB()
	ctx := context.Background()

	p := domain.Product{ID: 7, Name: "Limited Skin", Price: 80000, Category: "SKIN"}
	require.NoError(t, s.Create(ctx, p))

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	assert.ErrorIs(t, s.Create(ctx, p), domain.ErrDuplicateID)

	require.NoError(t, s.Delete(ctx, 7))
	_, err = s.Get(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 7), domain.ErrNotFound)
}

func TestListKeepsCreationOrder(t *testing.T) {
	s, closeDB := openStore(t, filepath.Join(t.TempDir(), "catalog.db"))
	defer closeDB()
	ctx := context.Background()

	// Ids deliberately out of numeric order.
	for _, id := range []int{30, 10, 20} {
		require.NoError(t, s.Create(ctx, domain.Product{ID: id, Name: "Product", Price: 1000, Category: "MISC"}))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{30, 10, 20}, []int{list[0].ID, list[1].ID, list[2].ID})
}

func TestUpdateKeepsCreationOrderAndSpotlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, closeDB := openStore(t, path)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, domain.Product{ID: 2, Name: "First", Price: 1000, Category: "MISC"}))
	require.NoError(t, s.Create(ctx, domain.Product{ID: 1, Name: "Second", Price: 1000, Category: "MISC"}))
	require.NoError(t, s.SetSpotlight(ctx, 2, true))

	require.NoError(t, s.Update(ctx, domain.Product{ID: 2, Name: "First v2", Price: 2000, Category: "MISC", Spotlight: true}))
	closeDB()

	s, closeDB = openStore(t, path)
	defer closeDB()

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].ID)
	assert.Equal(t, "First v2", list[0].Name)
	assert.True(t, list[0].Spotlight)

	err = s.Update(ctx, domain.Product{ID: 99, Name: "Ghost", Price: 1, Category: "MISC"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
