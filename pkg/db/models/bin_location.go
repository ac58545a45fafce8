package models

import (
	"time"

	"github.com/google/uuid"
)

// BinLocation records where a variant is shelved in the warehouse.
type BinLocation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID    string    `gorm:"column:shop_id;not null;uniqueIndex:idx_bin_locations_shop_variant,priority:1"`
	VariantID int64     `gorm:"column:variant_id;not null;uniqueIndex:idx_bin_locations_shop_variant,priority:2"`
	Location  string    `gorm:"column:location;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
