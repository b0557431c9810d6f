package models

import (
	"encoding/json"
	"fmt"
)

// Record is a transient snapshot of a purchase-order/invoice record fetched
// from the record store. Attributes is an open mapping: scalar values,
// arrays, and serialized line-item tables under distinct keys.
type Record struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// StringAttr returns the attribute as a string, or "" when absent or not a
// scalar the record store would have stored as text.
func (r *Record) StringAttr(key string) string {
	if r == nil || r.Attributes == nil {
		return ""
	}
	return CoerceString(r.Attributes[key])
}

// CoerceString renders a scalar attribute value as the string form used for
// parsing and display. Numbers arrive from JSON as float64.
func CoerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// Trim the ".000000" noise fmt would add for whole numbers.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// TableRow is one row of a serialized line-item table. Name is the row id,
// stable across updates.
type TableRow struct {
	Name   string         `json:"name"`
	Values map[string]any `json:"values"`
}

// Value returns the row value under the given attribute key as a string.
func (t *TableRow) Value(key string) string {
	if t.Values == nil {
		return ""
	}
	return CoerceString(t.Values[key])
}

// ParseTable decodes a serialized line-item table attribute. Anything that
// is not a JSON row list decodes to nil; malformed tables are treated as an
// absent channel, not an error.
func ParseTable(raw string) []TableRow {
	var rows []TableRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil
	}
	return rows
}

// RowUpdate is a partial update for a single table row, keyed by concrete
// attribute keys. Values holds only the fields the table endpoint should
// receive for this row.
type RowUpdate struct {
	Name   string
	Values map[string]string
}

// ReconciliationResult is the outcome of reconciling one channel's table.
// Subtotal is formatted with two fraction digits and is valid only when
// HasSubtotal is true (a parseable, non-empty table). Rows preserves input
// order and contains only rows whose recomputed amount differs from the
// stored one.
type ReconciliationResult struct {
	HasSubtotal bool
	Subtotal    string
	Rows        []RowUpdate
}

// AppError carries pipeline-stage context with an underlying error.
type AppError struct {
	RecordID string
	Stage    string
	Message  string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record %s: %s: %s - %v", e.RecordID, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("record %s: %s: %s", e.RecordID, e.Stage, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}
