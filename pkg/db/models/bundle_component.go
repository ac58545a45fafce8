package models

import (
	"time"

	"github.com/google/uuid"
)

// BundleComponent is one (child variant, quantity) entry of a bundle.
// Quantity is always >= 1. Title/SKU are snapshots used when a pick list
// expands the bundle into component rows.
type BundleComponent struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BundleID       uuid.UUID `gorm:"column:bundle_id;type:uuid;not null;uniqueIndex:idx_components_bundle_child,priority:1"`
	ChildVariantID int64     `gorm:"column:child_variant_id;not null;uniqueIndex:idx_components_bundle_child,priority:2"`
	Quantity       int       `gorm:"column:quantity;not null"`
	Title          string    `gorm:"column:title;not null"`
	VariantTitle   string    `gorm:"column:variant_title;not null;default:''"`
	SKU            *string   `gorm:"column:sku"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
