package models

import (
	"time"

	"github.com/google/uuid"
)

// Bundle maps a sellable parent variant onto the component variants that
// back its stock. A shop may have at most one bundle per parent variant.
type Bundle struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID          string            `gorm:"column:shop_id;not null;uniqueIndex:idx_bundles_shop_parent,priority:1"`
	ParentVariantID int64             `gorm:"column:parent_variant_id;not null;uniqueIndex:idx_bundles_shop_parent,priority:2"`
	Title           string            `gorm:"column:title;not null"`
	ExpandOnPick    bool              `gorm:"column:expand_on_pick;not null;default:false"`
	Components      []BundleComponent `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// SameProduct reports whether the bundle is a pack-size variant of a single
// base unit (exactly one component).
func (b Bundle) SameProduct() bool {
	return len(b.Components) == 1
}

// VariantIDs returns the parent plus all component variant ids, deduplicated.
func (b Bundle) VariantIDs() []int64 {
	seen := map[int64]struct{}{b.ParentVariantID: {}}
	ids := []int64{b.ParentVariantID}
	for _, c := range b.Components {
		if _, ok := seen[c.ChildVariantID]; ok {
			continue
		}
		seen[c.ChildVariantID] = struct{}{}
		ids = append(ids, c.ChildVariantID)
	}
	return ids
}
