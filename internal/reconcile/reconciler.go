// Package reconcile recomputes line-item amounts and channel subtotals from
// a record's serialized line-item tables.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/models"
)

// Reconcile recomputes every row amount of one channel's table as
// quantity x price and reports the minimal row-update set plus the channel
// subtotal.
//
// A table that fails to parse, or parses to something other than a non-empty
// row list, is treated as an absent channel: no rows, no subtotal, no error.
// The subtotal accumulates unrounded per-row amounts and is rounded once at
// the end, so it can differ by a cent from the sum of the displayed
// two-decimal row amounts. A row is included in the update set only when its
// recomputed two-decimal amount differs from the stored one; the stored
// amount is never trusted, only recomputed.
func Reconcile(tableRaw string, mapping config.FieldMapping) models.ReconciliationResult {
	rows := models.ParseTable(tableRaw)
	if len(rows) == 0 {
		return models.ReconciliationResult{}
	}

	subtotal := decimal.Zero
	var updates []models.RowUpdate

	for i := range rows {
		row := &rows[i]

		qty := parseDecimal(row.Value(mapping.Quantity))
		price := parseDecimal(row.Value(mapping.Price))

		amount := qty.Mul(price)
		subtotal = subtotal.Add(amount)

		formatted := amount.StringFixed(2)
		stored := parseDecimal(row.Value(mapping.Amount)).StringFixed(2)
		if formatted == stored {
			continue
		}

		// The table endpoint rejects updates lacking required fields and
		// rejects an explicitly-empty optional field, so every required role
		// is echoed back and the part number is sent only when present.
		values := map[string]string{
			mapping.Amount:      formatted,
			mapping.Quantity:    row.Value(mapping.Quantity),
			mapping.Price:       row.Value(mapping.Price),
			mapping.Description: row.Value(mapping.Description),
			mapping.UOM:         row.Value(mapping.UOM),
		}
		if part := row.Value(mapping.PartNumber); part != "" {
			values[mapping.PartNumber] = part
		}

		updates = append(updates, models.RowUpdate{Name: row.Name, Values: values})
	}

	return models.ReconciliationResult{
		HasSubtotal: true,
		Subtotal:    subtotal.StringFixed(2),
		Rows:        updates,
	}
}

// parseDecimal parses a numeric attribute string, defaulting to zero on any
// parse failure so a malformed quantity or price never aborts the run.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
