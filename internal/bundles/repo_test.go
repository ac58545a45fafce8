package bundles

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/ksefonte/spicy-pickle/pkg/db"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBundlesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	bundles := `
CREATE TABLE IF NOT EXISTS bundles (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  parent_variant_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  expand_on_pick INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (shop_id, parent_variant_id)
);`
	components := `
CREATE TABLE IF NOT EXISTS bundle_components (
  id TEXT PRIMARY KEY,
  bundle_id TEXT NOT NULL,
  child_variant_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  title TEXT NOT NULL,
  variant_title TEXT NOT NULL DEFAULT '',
  sku TEXT,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (bundle_id, child_variant_id)
);`
	require.NoError(t, conn.Exec(bundles).Error)
	require.NoError(t, conn.Exec(components).Error)
	return conn
}

func seedBundle(t *testing.T, repo Repository, shopID string, parent int64, components ...models.BundleComponent) *models.Bundle {
	t.Helper()
	for i := range components {
		if components[i].ID == uuid.Nil {
			components[i].ID = uuid.New()
		}
	}
	bundle := &models.Bundle{
		ID:              uuid.New(),
		ShopID:          shopID,
		ParentVariantID: parent,
		Title:           fmt.Sprintf("bundle-%d", parent),
		Components:      components,
	}
	created, err := repo.Create(context.Background(), bundle)
	require.NoError(t, err)
	return created
}

func TestFindBundlesContaining(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupBundlesTestDB(t))

	fourPack := seedBundle(t, repo, "shop-a", 100,
		models.BundleComponent{ChildVariantID: 10, Quantity: 4, Title: "Lager"},
	)
	varietyPack := seedBundle(t, repo, "shop-a", 200,
		models.BundleComponent{ChildVariantID: 10, Quantity: 2, Title: "Lager"},
		models.BundleComponent{ChildVariantID: 11, Quantity: 2, Title: "Stout"},
	)
	seedBundle(t, repo, "shop-a", 300,
		models.BundleComponent{ChildVariantID: 12, Quantity: 6, Title: "Pilsner"},
	)

	t.Run("component match returns every bundle using the variant", func(t *testing.T) {
		found, err := repo.FindBundlesContaining(ctx, "shop-a", 10)
		require.NoError(t, err)
		require.Len(t, found, 2)
		ids := []uuid.UUID{found[0].ID, found[1].ID}
		assert.Contains(t, ids, fourPack.ID)
		assert.Contains(t, ids, varietyPack.ID)
		for _, b := range found {
			assert.NotEmpty(t, b.Components)
		}
	})

	t.Run("parent match", func(t *testing.T) {
		found, err := repo.FindBundlesContaining(ctx, "shop-a", 200)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, varietyPack.ID, found[0].ID)
	})

	t.Run("variant that is both parent and component is not duplicated", func(t *testing.T) {
		nested := seedBundle(t, repo, "shop-a", 400,
			models.BundleComponent{ChildVariantID: 400, Quantity: 2, Title: "Self"},
		)
		found, err := repo.FindBundlesContaining(ctx, "shop-a", 400)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, nested.ID, found[0].ID)
	})

	t.Run("unknown variant", func(t *testing.T) {
		found, err := repo.FindBundlesContaining(ctx, "shop-a", 999)
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("other shop is invisible", func(t *testing.T) {
		found, err := repo.FindBundlesContaining(ctx, "shop-b", 10)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestCreateEnforcesOneBundlePerParent(t *testing.T) {
	repo := NewRepository(setupBundlesTestDB(t))

	seedBundle(t, repo, "shop-a", 100,
		models.BundleComponent{ChildVariantID: 10, Quantity: 4, Title: "Lager"},
	)

	_, err := repo.Create(context.Background(), &models.Bundle{
		ID:              uuid.New(),
		ShopID:          "shop-a",
		ParentVariantID: 100,
		Title:           "dup",
		Components: []models.BundleComponent{
			{ID: uuid.New(), ChildVariantID: 11, Quantity: 2, Title: "Stout"},
		},
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestReplaceComponentsIsWholesale(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupBundlesTestDB(t))

	bundle := seedBundle(t, repo, "shop-a", 100,
		models.BundleComponent{ChildVariantID: 10, Quantity: 4, Title: "Lager"},
		models.BundleComponent{ChildVariantID: 11, Quantity: 2, Title: "Stout"},
	)

	err := repo.ReplaceComponents(ctx, bundle.ID, []models.BundleComponent{
		{ID: uuid.New(), ChildVariantID: 12, Quantity: 6, Title: "Pilsner"},
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, bundle.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Components, 1)
	assert.Equal(t, int64(12), reloaded.Components[0].ChildVariantID)
}

func TestFindExpandableByParentVariants(t *testing.T) {
	ctx := context.Background()
	conn := setupBundlesTestDB(t)
	repo := NewRepository(conn)

	expandable := seedBundle(t, repo, "shop-a", 100,
		models.BundleComponent{ChildVariantID: 10, Quantity: 4, Title: "Lager"},
	)
	require.NoError(t, conn.Model(&models.Bundle{}).
		Where("id = ?", expandable.ID).
		Update("expand_on_pick", true).Error)

	seedBundle(t, repo, "shop-a", 200,
		models.BundleComponent{ChildVariantID: 11, Quantity: 2, Title: "Stout"},
	)

	found, err := repo.FindExpandableByParentVariants(ctx, "shop-a", []int64{100, 200, 300})
	require.NoError(t, err)
	require.Len(t, found, 1)
	got, ok := found[100]
	require.True(t, ok)
	assert.Equal(t, expandable.ID, got.ID)
	assert.NotEmpty(t, got.Components)
}

func TestDeleteRemovesComponents(t *testing.T) {
	ctx := context.Background()
	conn := setupBundlesTestDB(t)
	repo := NewRepository(conn)

	bundle := seedBundle(t, repo, "shop-a", 100,
		models.BundleComponent{ChildVariantID: 10, Quantity: 4, Title: "Lager"},
	)
	require.NoError(t, repo.Delete(ctx, bundle.ID))

	_, err := repo.FindByID(ctx, bundle.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, conn.Model(&models.BundleComponent{}).
		Where("bundle_id = ?", bundle.ID).
		Count(&count).Error)
	assert.Zero(t, count)
}
