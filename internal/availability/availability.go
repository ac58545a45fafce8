// Package availability computes target stock counts for bundle variants.
// Every sync decision reduces to one of the two functions here; both are
// pure and never touch I/O.
package availability

import (
	"fmt"

	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
)

// Component pairs the current stock of a child variant with the quantity the
// bundle consumes per unit sold.
type Component struct {
	Stock    int
	Quantity int
}

// SameProduct returns how many bundle units can be sold when the bundle is a
// pack-size multiple of a single base unit: floor(baseStock / multiplier).
func SameProduct(baseStock, multiplier int) (int, error) {
	if multiplier <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("multiplier must be positive, got %d", multiplier))
	}
	if baseStock < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("base stock must be non-negative, got %d", baseStock))
	}
	return baseStock / multiplier, nil
}

// Mixed returns how many bundle units can be sold for a variety pack: the
// minimum over components of floor(stock / quantity). An empty component
// list is a degenerate bundle and yields 0, not an error. A component with
// zero stock forces the result to 0 regardless of the others.
func Mixed(components []Component) (int, error) {
	if len(components) == 0 {
		return 0, nil
	}
	min := -1
	for i, c := range components {
		if c.Quantity <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %d quantity must be positive, got %d", i, c.Quantity))
		}
		if c.Stock < 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %d stock must be non-negative, got %d", i, c.Stock))
		}
		sellable := c.Stock / c.Quantity
		if min < 0 || sellable < min {
			min = sellable
		}
	}
	return min, nil
}
