package binlocations

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBinTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS bin_locations (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  variant_id INTEGER NOT NULL,
  location TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (shop_id, variant_id)
);`
	require.NoError(t, conn.Exec(ddl).Error)
	return conn
}

func TestUpsertAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupBinTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &models.BinLocation{
		ID: uuid.New(), ShopID: "shop-a", VariantID: 10, Location: "A-01",
	}))
	require.NoError(t, repo.Upsert(ctx, &models.BinLocation{
		ID: uuid.New(), ShopID: "shop-a", VariantID: 11, Location: "B-04",
	}))

	locations, err := repo.Lookup(ctx, "shop-a", []int64{10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{10: "A-01", 11: "B-04"}, locations)
}

func TestUpsertReplacesLocation(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupBinTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &models.BinLocation{
		ID: uuid.New(), ShopID: "shop-a", VariantID: 10, Location: "A-01",
	}))
	require.NoError(t, repo.Upsert(ctx, &models.BinLocation{
		ID: uuid.New(), ShopID: "shop-a", VariantID: 10, Location: "C-07",
	}))

	locations, err := repo.Lookup(ctx, "shop-a", []int64{10})
	require.NoError(t, err)
	assert.Equal(t, "C-07", locations[10])

	rows, err := repo.List(ctx, "shop-a")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLookupEmptyInput(t *testing.T) {
	repo := NewRepository(setupBinTestDB(t))
	locations, err := repo.Lookup(context.Background(), "shop-a", nil)
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupBinTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &models.BinLocation{
		ID: uuid.New(), ShopID: "shop-a", VariantID: 10, Location: "A-01",
	}))
	require.NoError(t, repo.Delete(ctx, "shop-a", 10))

	locations, err := repo.Lookup(ctx, "shop-a", []int64{10})
	require.NoError(t, err)
	assert.Empty(t, locations)
}
