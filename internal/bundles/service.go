package bundles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ksefonte/spicy-pickle/pkg/db"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/ksefonte/spicy-pickle/pkg/pagination"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ComponentInput is one component entry of a create/update request.
type ComponentInput struct {
	ChildVariantID int64
	Quantity       int
	Title          string
	VariantTitle   string
	SKU            *string
}

// CreateInput carries the fields of a new bundle. Components replace any
// previous set wholesale on update; there is no incremental component edit.
type CreateInput struct {
	ShopID          string
	ParentVariantID int64
	Title           string
	ExpandOnPick    bool
	Components      []ComponentInput
}

// UpdateInput mirrors CreateInput for an existing bundle.
type UpdateInput struct {
	Title        string
	ExpandOnPick bool
	Components   []ComponentInput
}

// BundleList is one page of bundles plus the cursor for the next page.
type BundleList struct {
	Bundles    []models.Bundle
	NextCursor string
}

// Service manages bundle definitions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Bundle, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
	List(ctx context.Context, shopID string, params pagination.Params) (*BundleList, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Bundle, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a bundle management service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bundles repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Bundle, error) {
	if input.ShopID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	if input.ParentVariantID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent variant id required")
	}
	components, err := buildComponents(input.ParentVariantID, input.Components)
	if err != nil {
		return nil, err
	}

	bundle := &models.Bundle{
		ShopID:          input.ShopID,
		ParentVariantID: input.ParentVariantID,
		Title:           input.Title,
		ExpandOnPick:    input.ExpandOnPick,
		Components:      components,
	}
	created, err := s.repo.Create(ctx, bundle)
	if err != nil {
		if db.IsUniqueViolation(err, "idx_bundles_shop_parent") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a bundle already exists for this parent variant")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bundle")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	bundle, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle")
	}
	return bundle, nil
}

func (s *service) List(ctx context.Context, shopID string, params pagination.Params) (*BundleList, error) {
	if shopID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var after *ListCursor
	if cursor != nil {
		after = &ListCursor{CreatedAt: cursor.CreatedAt, ID: cursor.ID}
	}

	limit := pagination.NormalizeLimit(params.Limit)
	bundles, err := s.repo.List(ctx, shopID, pagination.LimitWithBuffer(params.Limit), after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bundles")
	}

	list := &BundleList{Bundles: bundles}
	if len(bundles) > limit {
		list.Bundles = bundles[:limit]
		last := list.Bundles[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Bundle, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	components, err := buildComponents(existing.ParentVariantID, input.Components)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing.Title = input.Title
		existing.ExpandOnPick = input.ExpandOnPick
		if err := repo.Update(ctx, existing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bundle")
		}
		if err := repo.ReplaceComponents(ctx, id, components); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace components")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bundle")
	}
	return nil
}

func buildComponents(parentVariantID int64, inputs []ComponentInput) ([]models.BundleComponent, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one component is required")
	}
	seen := map[int64]struct{}{}
	components := make([]models.BundleComponent, 0, len(inputs))
	for i, input := range inputs {
		if input.ChildVariantID <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %d: child variant id required", i))
		}
		if input.ChildVariantID == parentVariantID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %d: a bundle cannot contain its own parent variant", i))
		}
		if input.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %d: quantity must be at least 1", i))
		}
		if _, dup := seen[input.ChildVariantID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %d: duplicate child variant", i))
		}
		seen[input.ChildVariantID] = struct{}{}
		components = append(components, models.BundleComponent{
			ChildVariantID: input.ChildVariantID,
			Quantity:       input.Quantity,
			Title:          input.Title,
			VariantTitle:   input.VariantTitle,
			SKU:            input.SKU,
		})
	}
	return components, nil
}
