package picklist

import (
	"strconv"
	"strings"
)

// csvHeader is the fixed export header; consumers key on these column names.
const csvHeader = "Product,Variant,SKU,Quantity,Bin Location"

// WriteCSV serializes pick list items. Fields containing a comma, quote, or
// newline are wrapped in quotes with internal quotes doubled; nil SKU and
// bin location render as empty fields.
func WriteCSV(items []Item) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteString("\n")
	for _, item := range items {
		row := []string{
			csvField(item.Title),
			csvField(item.VariantTitle),
			csvField(deref(item.SKU)),
			strconv.Itoa(item.Quantity),
			csvField(deref(item.BinLocation)),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func csvField(value string) string {
	if !strings.ContainsAny(value, ",\"\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
