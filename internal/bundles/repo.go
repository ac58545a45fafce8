package bundles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"gorm.io/gorm"
)

// Repository is the bundle persistence surface consumed by the sync
// orchestrator, the pick list aggregator, and the management service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bundle *models.Bundle) (*models.Bundle, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
	FindByParentVariant(ctx context.Context, shopID string, parentVariantID int64) (*models.Bundle, error)
	// FindBundlesContaining returns every bundle where the variant is the
	// parent or appears among the components, deduplicated by bundle id.
	FindBundlesContaining(ctx context.Context, shopID string, variantID int64) ([]models.Bundle, error)
	// FindExpandableByParentVariants returns expand-on-pick bundles keyed by
	// parent variant id, restricted to the given parents.
	FindExpandableByParentVariants(ctx context.Context, shopID string, variantIDs []int64) (map[int64]models.Bundle, error)
	List(ctx context.Context, shopID string, limit int, after *ListCursor) ([]models.Bundle, error)
	Update(ctx context.Context, bundle *models.Bundle) error
	ReplaceComponents(ctx context.Context, bundleID uuid.UUID, components []models.BundleComponent) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListCursor is a keyset position within a shop's bundle listing.
type ListCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bundles repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bundle *models.Bundle) (*models.Bundle, error) {
	if err := r.db.WithContext(ctx).Create(bundle).Error; err != nil {
		return nil, err
	}
	return bundle, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	var bundle models.Bundle
	err := r.db.WithContext(ctx).
		Preload("Components").
		Where("id = ?", id).
		First(&bundle).Error
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *repository) FindByParentVariant(ctx context.Context, shopID string, parentVariantID int64) (*models.Bundle, error) {
	var bundle models.Bundle
	err := r.db.WithContext(ctx).
		Preload("Components").
		Where("shop_id = ? AND parent_variant_id = ?", shopID, parentVariantID).
		First(&bundle).Error
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *repository) FindBundlesContaining(ctx context.Context, shopID string, variantID int64) ([]models.Bundle, error) {
	var bundles []models.Bundle
	err := r.db.WithContext(ctx).
		Preload("Components").
		Where(
			"shop_id = ? AND (parent_variant_id = ? OR id IN (?))",
			shopID,
			variantID,
			r.db.Model(&models.BundleComponent{}).
				Select("bundle_id").
				Where("child_variant_id = ?", variantID),
		).
		Order("created_at ASC").
		Find(&bundles).Error
	if err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *repository) FindExpandableByParentVariants(ctx context.Context, shopID string, variantIDs []int64) (map[int64]models.Bundle, error) {
	if len(variantIDs) == 0 {
		return map[int64]models.Bundle{}, nil
	}
	var bundles []models.Bundle
	err := r.db.WithContext(ctx).
		Preload("Components").
		Where("shop_id = ? AND expand_on_pick = ? AND parent_variant_id IN ?", shopID, true, variantIDs).
		Find(&bundles).Error
	if err != nil {
		return nil, err
	}
	result := make(map[int64]models.Bundle, len(bundles))
	for _, b := range bundles {
		result[b.ParentVariantID] = b
	}
	return result, nil
}

func (r *repository) List(ctx context.Context, shopID string, limit int, after *ListCursor) ([]models.Bundle, error) {
	query := r.db.WithContext(ctx).
		Preload("Components").
		Where("shop_id = ?", shopID).
		Order("created_at ASC, id ASC").
		Limit(limit)
	if after != nil {
		query = query.Where(
			"(created_at > ?) OR (created_at = ? AND id > ?)",
			after.CreatedAt, after.CreatedAt, after.ID,
		)
	}
	var bundles []models.Bundle
	if err := query.Find(&bundles).Error; err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *repository) Update(ctx context.Context, bundle *models.Bundle) error {
	return r.db.WithContext(ctx).
		Model(&models.Bundle{}).
		Where("id = ?", bundle.ID).
		Updates(map[string]any{
			"title":          bundle.Title,
			"expand_on_pick": bundle.ExpandOnPick,
		}).Error
}

func (r *repository) ReplaceComponents(ctx context.Context, bundleID uuid.UUID, components []models.BundleComponent) error {
	if err := r.db.WithContext(ctx).
		Where("bundle_id = ?", bundleID).
		Delete(&models.BundleComponent{}).Error; err != nil {
		return err
	}
	if len(components) == 0 {
		return nil
	}
	for i := range components {
		components[i].BundleID = bundleID
	}
	return r.db.WithContext(ctx).Create(&components).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("bundle_id = ?", id).
		Delete(&models.BundleComponent{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Bundle{}).Error
}
