package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/models"
)

func testMapping() config.FieldMapping {
	return config.FieldMapping{
		Channel:      config.ChannelInternal,
		TableAttr:    "cf_items_btpo",
		TableFieldID: "301",
		SubtotalAttr: "cf_subtotal_n",
		Quantity:     "qty",
		Price:        "price",
		Amount:       "amount",
		Description:  "desc",
		UOM:          "uom",
		PartNumber:   "part",
	}
}

func encodeTable(t *testing.T, rows []models.TableRow) string {
	t.Helper()
	data, err := json.Marshal(rows)
	assert.NoError(t, err)
	return string(data)
}

func TestReconcile(t *testing.T) {
	mapping := testMapping()

	t.Run("should report subtotal without row updates when stored amounts already match", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "1", "price": "562.35", "amount": "562.35", "desc": "Filling", "uom": "EA"}},
			{Name: "row-2", Values: map[string]any{"qty": "10", "price": "75.86", "amount": "758.60", "desc": "Vials", "uom": "EA"}},
			{Name: "row-3", Values: map[string]any{"qty": "1", "price": "25.00", "amount": "25.00", "desc": "Shipping", "uom": "EA"}},
		})

		result := Reconcile(table, mapping)

		assert.True(t, result.HasSubtotal)
		assert.Equal(t, "1345.95", result.Subtotal)
		assert.Empty(t, result.Rows)
	})

	t.Run("should emit a row update when the recomputed amount differs", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "2", "price": "49.99", "amount": "100.00", "desc": "Media", "uom": "EA", "part": ""}},
		})

		result := Reconcile(table, mapping)

		assert.True(t, result.HasSubtotal)
		assert.Equal(t, "99.98", result.Subtotal)
		assert.Len(t, result.Rows, 1)

		update := result.Rows[0]
		assert.Equal(t, "row-1", update.Name)
		assert.Equal(t, "99.98", update.Values["amount"])
		assert.Equal(t, "2", update.Values["qty"])
		assert.Equal(t, "49.99", update.Values["price"])
		assert.Equal(t, "Media", update.Values["desc"])
		assert.Equal(t, "EA", update.Values["uom"])
	})

	t.Run("should omit the part number from an update when it is empty", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "2", "price": "49.99", "amount": "100.00", "desc": "Media", "uom": "EA", "part": ""}},
		})

		result := Reconcile(table, mapping)

		assert.Len(t, result.Rows, 1)
		_, present := result.Rows[0].Values["part"]
		assert.False(t, present)
	})

	t.Run("should include the part number in an update when it is set", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "2", "price": "49.99", "amount": "100.00", "desc": "Media", "uom": "EA", "part": "PN-100"}},
		})

		result := Reconcile(table, mapping)

		assert.Len(t, result.Rows, 1)
		assert.Equal(t, "PN-100", result.Rows[0].Values["part"])
	})

	t.Run("should treat an unparseable table as an absent channel", func(t *testing.T) {
		result := Reconcile("not json", mapping)

		assert.False(t, result.HasSubtotal)
		assert.Empty(t, result.Subtotal)
		assert.Empty(t, result.Rows)
	})

	t.Run("should treat a non-list table as an absent channel", func(t *testing.T) {
		result := Reconcile(`{"name":"row-1"}`, mapping)

		assert.False(t, result.HasSubtotal)
		assert.Empty(t, result.Rows)
	})

	t.Run("should treat an empty list as an absent channel", func(t *testing.T) {
		result := Reconcile("[]", mapping)

		assert.False(t, result.HasSubtotal)
		assert.Empty(t, result.Rows)
	})

	t.Run("should default unparseable quantity and price to zero", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "many", "price": "49.99", "amount": "50.00", "desc": "Media", "uom": "EA"}},
			{Name: "row-2", Values: map[string]any{"price": "10.00", "amount": "0.00", "desc": "Labels", "uom": "EA"}},
		})

		result := Reconcile(table, mapping)

		assert.True(t, result.HasSubtotal)
		assert.Equal(t, "0.00", result.Subtotal)
		assert.Len(t, result.Rows, 1)
		assert.Equal(t, "0.00", result.Rows[0].Values["amount"])
	})

	t.Run("should round the subtotal once over unrounded row amounts", func(t *testing.T) {
		// Each row amount is 1.01745, displayed as 1.02; the subtotal is
		// round(2.0349) = 2.03, one cent below the displayed-amount sum.
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "0.35", "price": "2.907", "amount": "1.02", "desc": "A", "uom": "EA"}},
			{Name: "row-2", Values: map[string]any{"qty": "0.35", "price": "2.907", "amount": "1.02", "desc": "B", "uom": "EA"}},
		})

		result := Reconcile(table, mapping)

		assert.True(t, result.HasSubtotal)
		assert.Equal(t, "2.03", result.Subtotal)
		assert.Empty(t, result.Rows)
	})

	t.Run("should preserve input row order in the update set", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "1", "price": "1.00", "amount": "9.99", "desc": "A", "uom": "EA"}},
			{Name: "row-2", Values: map[string]any{"qty": "1", "price": "2.00", "amount": "2.00", "desc": "B", "uom": "EA"}},
			{Name: "row-3", Values: map[string]any{"qty": "1", "price": "3.00", "amount": "9.99", "desc": "C", "uom": "EA"}},
		})

		result := Reconcile(table, mapping)

		assert.Len(t, result.Rows, 2)
		assert.Equal(t, "row-1", result.Rows[0].Name)
		assert.Equal(t, "row-3", result.Rows[1].Name)
	})

	t.Run("should be idempotent once stored amounts match", func(t *testing.T) {
		table := encodeTable(t, []models.TableRow{
			{Name: "row-1", Values: map[string]any{"qty": "3", "price": "3.50", "amount": "10.50", "desc": "A", "uom": "EA"}},
		})

		first := Reconcile(table, mapping)
		second := Reconcile(table, mapping)

		assert.Empty(t, first.Rows)
		assert.Empty(t, second.Rows)
		assert.Equal(t, first.Subtotal, second.Subtotal)
		assert.True(t, second.HasSubtotal)
	})
}
