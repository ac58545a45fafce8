package availability

import (
	"testing"

	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameProduct(t *testing.T) {
	cases := []struct {
		name       string
		baseStock  int
		multiplier int
		want       int
	}{
		{name: "case of 24 from 48", baseStock: 48, multiplier: 24, want: 2},
		{name: "six pack from 48", baseStock: 48, multiplier: 6, want: 8},
		{name: "four pack from 48", baseStock: 48, multiplier: 4, want: 12},
		{name: "singles pass through", baseStock: 48, multiplier: 1, want: 48},
		{name: "zero stock", baseStock: 0, multiplier: 6, want: 0},
		{name: "stock below multiplier", baseStock: 5, multiplier: 6, want: 0},
		{name: "rounds down", baseStock: 47, multiplier: 6, want: 7},
		{name: "large stock", baseStock: 1 << 30, multiplier: 2, want: 1 << 29},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SameProduct(tc.baseStock, tc.multiplier)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSameProductMonotonicInStock(t *testing.T) {
	prev := -1
	for stock := 0; stock <= 200; stock++ {
		got, err := SameProduct(stock, 7)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestSameProductInvalidMultiplier(t *testing.T) {
	for _, multiplier := range []int{0, -1, -24} {
		_, err := SameProduct(48, multiplier)
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}

func TestSameProductNegativeStock(t *testing.T) {
	_, err := SameProduct(-1, 6)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMixed(t *testing.T) {
	cases := []struct {
		name       string
		components []Component
		want       int
	}{
		{name: "empty bundle", components: nil, want: 0},
		{
			name:       "single component degenerates to same-product",
			components: []Component{{Stock: 48, Quantity: 24}},
			want:       2,
		},
		{
			name: "limited by scarcest component",
			components: []Component{
				{Stock: 100, Quantity: 6},
				{Stock: 40, Quantity: 4},
				{Stock: 10, Quantity: 2},
			},
			want: 5,
		},
		{
			name: "zero stock component forces zero",
			components: []Component{
				{Stock: 500, Quantity: 1},
				{Stock: 0, Quantity: 1},
				{Stock: 300, Quantity: 2},
			},
			want: 0,
		},
		{
			name: "equal constraints",
			components: []Component{
				{Stock: 12, Quantity: 4},
				{Stock: 9, Quantity: 3},
			},
			want: 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Mixed(tc.components)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMixedMatchesPerComponentFloors(t *testing.T) {
	components := []Component{
		{Stock: 37, Quantity: 5},
		{Stock: 80, Quantity: 11},
		{Stock: 14, Quantity: 2},
	}
	want := components[0].Stock / components[0].Quantity
	for _, c := range components[1:] {
		if s := c.Stock / c.Quantity; s < want {
			want = s
		}
	}

	got, err := Mixed(components)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMixedInvalidQuantity(t *testing.T) {
	for _, quantity := range []int{0, -1} {
		_, err := Mixed([]Component{{Stock: 10, Quantity: quantity}})
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}
