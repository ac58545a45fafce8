package picklist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVHeaderOnly(t *testing.T) {
	out := WriteCSV(nil)
	assert.Equal(t, "Product,Variant,SKU,Quantity,Bin Location\n", out)
}

func TestWriteCSVQuotesCommaFields(t *testing.T) {
	out := WriteCSV([]Item{{
		Title:        "Lager, Premium",
		VariantTitle: "Single",
		Quantity:     10,
	}})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Product,Variant,SKU,Quantity,Bin Location", lines[0])
	assert.Equal(t, `"Lager, Premium",Single,,10,`, lines[1])
}

func TestWriteCSVDoublesInternalQuotes(t *testing.T) {
	sku := `K"9`
	out := WriteCSV([]Item{{
		Title:        `The "Best" Ale`,
		VariantTitle: "Single",
		SKU:          &sku,
		Quantity:     3,
	}})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"The ""Best"" Ale",Single,"K""9",3,`, lines[1])
}

func TestWriteCSVQuotesNewlines(t *testing.T) {
	bin := "Aisle 4\nShelf 2"
	out := WriteCSV([]Item{{
		Title:        "Stout",
		VariantTitle: "Single",
		Quantity:     1,
		BinLocation:  &bin,
	}})
	assert.Contains(t, out, "\"Aisle 4\nShelf 2\"")
}

func TestWriteCSVPlainRow(t *testing.T) {
	sku := "LG-1"
	bin := "A-01"
	out := WriteCSV([]Item{{
		Title:        "Lager",
		VariantTitle: "Six Pack",
		SKU:          &sku,
		Quantity:     25,
		BinLocation:  &bin,
	}})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Lager,Six Pack,LG-1,25,A-01", lines[1])
}
