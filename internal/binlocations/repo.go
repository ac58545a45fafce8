package binlocations

import (
	"context"

	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the bin-location persistence surface.
type Repository interface {
	// Lookup returns locations keyed by variant id; variants without a bin
	// are absent from the map.
	Lookup(ctx context.Context, shopID string, variantIDs []int64) (map[int64]string, error)
	Upsert(ctx context.Context, row *models.BinLocation) error
	List(ctx context.Context, shopID string) ([]models.BinLocation, error)
	Delete(ctx context.Context, shopID string, variantID int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bin-location repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Lookup(ctx context.Context, shopID string, variantIDs []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(variantIDs))
	if len(variantIDs) == 0 {
		return result, nil
	}
	var rows []models.BinLocation
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND variant_id IN ?", shopID, variantIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.VariantID] = row.Location
	}
	return result, nil
}

func (r *repository) Upsert(ctx context.Context, row *models.BinLocation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shop_id"}, {Name: "variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"location", "updated_at"}),
		}).
		Create(row).Error
}

func (r *repository) List(ctx context.Context, shopID string) ([]models.BinLocation, error) {
	var rows []models.BinLocation
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("location ASC, variant_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Delete(ctx context.Context, shopID string, variantID int64) error {
	return r.db.WithContext(ctx).
		Where("shop_id = ? AND variant_id = ?", shopID, variantID).
		Delete(&models.BinLocation{}).Error
}
