// Package document defines the rendering-ready representation of a
// reconciled, enriched record and builds it from a record snapshot.
package document

import (
	"time"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/models"
)

// Template selects one of the three document variants.
type Template string

const (
	InternalPO    Template = "internal-po"
	ExternalPO    Template = "external-po"
	ClientInvoice Template = "client-invoice"
)

// CompanyName is the text substituted for the logo when the asset is
// missing.
const CompanyName = "BioTechnique"

// Field is one label/value pair in the header block. Bold marks the value as
// emphasized (document number).
type Field struct {
	Label string
	Value string
	Bold  bool
}

// AddressBlock is a labeled block of address lines.
type AddressBlock struct {
	Label string
	Lines []string
}

// LineItem is one row of the line-item table, all values display-ready
// strings except for the currency prefix added at render time.
type LineItem struct {
	Description string
	PartNumber  string
	Quantity    string
	UOM         string
	Price       string
	Amount      string
}

// TotalLine is one entry of the totals block. Discount lines render with a
// leading minus when positive; the Emphasized line is the bold grand total.
type TotalLine struct {
	Label      string
	Value      string
	Discount   bool
	Emphasized bool
}

// Model is the full document model handed to the layout engine. Rendering a
// Model is deterministic: it carries no environment-dependent state.
type Model struct {
	Template Template
	Number   string

	Header   []Field
	Supplier *AddressBlock // POs only, drawn above the side-by-side blocks
	Left     AddressBlock
	Right    AddressBlock
	Project  string // invoice only

	Items  []LineItem
	Totals []TotalLine
}

// TemplateForRecord picks the purchase-order variant from the record's PO
// type attribute.
func TemplateForRecord(rec *models.Record) Template {
	if rec.StringAttr("cf_po_type") == "Internal" {
		return InternalPO
	}
	return ExternalPO
}

// Build assembles the document model for the requested template from a
// reconciled, enriched record snapshot.
func Build(rec *models.Record, mappings []config.FieldMapping, tpl Template) Model {
	if tpl == ClientInvoice {
		return buildInvoice(rec, mappings)
	}
	return buildPurchaseOrder(rec, mappings, tpl)
}

func buildInvoice(rec *models.Record, mappings []config.FieldMapping) Model {
	number := rec.StringAttr("pkey")
	if number == "" {
		number = rec.ID
	}
	number += "-INV"

	return Model{
		Template: ClientInvoice,
		Number:   number,
		Header: []Field{
			{Label: "Invoice Number:", Value: number, Bold: true},
			{Label: "Invoice Date:", Value: FormatDate(rec.StringAttr("cf_date_client_invoice"))},
			{Label: "Invoice Due Date:", Value: FormatDate(rec.StringAttr("cf_due_date_client_invoice"))},
			{Label: "Customer PO Number:", Value: rec.StringAttr("cf_po_number")},
			{Label: "Payment Terms:", Value: rec.StringAttr("cf_invoice_payment_term")},
		},
		Left: AddressBlock{
			Label: "INVOICE TO:",
			Lines: []string{
				rec.StringAttr("cf_client"),
				rec.StringAttr("cf_client_address_crm"),
				cityLine(rec, "cf_address_city", "cf_address_state", "cf_address_zip"),
				rec.StringAttr("cf_address_country"),
			},
		},
		Right: AddressBlock{
			Label: "SHIP TO:",
			Lines: []string{
				rec.StringAttr("cf_receiving_company"),
				rec.StringAttr("cf_shipping_address"),
				cityLine(rec, "cf_ship_to_city", "cf_ship_to_state", "cf_ship_to_zip"),
				rec.StringAttr("cf_ship_to_country"),
			},
		},
		Project: rec.StringAttr("cf_project_psc"),
		Items:   buildItems(rec, mappingFor(mappings, config.ChannelExternal)),
		Totals: []TotalLine{
			{Label: "Order Total:", Value: rec.StringAttr("cf_subtotal_external")},
			{Label: "Sales Tax:", Value: rec.StringAttr("cf_tax_external")},
			{Label: "Shipping & Handling:", Value: rec.StringAttr("cf_shipping_n_handling_external")},
			{Label: "Other:", Value: rec.StringAttr("cf_others_external")},
			{Label: "Discount:", Value: rec.StringAttr("cf_discount_ext"), Discount: true},
			{Label: "Handling Fee:", Value: rec.StringAttr("cf_additional_handling_ext")},
			{Label: "Invoice Total (USD):", Value: rec.StringAttr("cf_total_w_handlingfe"), Emphasized: true},
		},
	}
}

func buildPurchaseOrder(rec *models.Record, mappings []config.FieldMapping, tpl Template) Model {
	number := rec.StringAttr("pkey")
	if number == "" {
		number = rec.ID
	}

	shipTo := rec.StringAttr("cf_receiving_company")
	if shipTo == "" {
		shipTo = CompanyName
	}
	billTo := rec.StringAttr("cf_bill_to_company")
	if billTo == "" {
		billTo = CompanyName + " LLC"
	}

	model := Model{
		Template: tpl,
		Number:   number,
		Header: []Field{
			{Label: "Purchase Order No:", Value: number, Bold: true},
			{Label: "Quote No:", Value: rec.StringAttr("cf_quote_number")},
			{Label: "Payment Terms:", Value: rec.StringAttr("cf_payment_terms")},
		},
		Supplier: &AddressBlock{
			Label: "SUPPLIER:",
			Lines: []string{
				rec.StringAttr("cf_supplier_company_nam"),
				rec.StringAttr("cf_address_of_supplier"),
				cityLine(rec, "cf_supplier_city", "cf_supplier_state", "cf_supplier_zip"),
				rec.StringAttr("cf_supplier_country"),
			},
		},
		Left: AddressBlock{
			Label: "SHIP TO:",
			Lines: []string{
				shipTo,
				rec.StringAttr("cf_shipping_address"),
				cityLine(rec, "cf_ship_to_city", "cf_ship_to_state", "cf_ship_to_zip"),
				rec.StringAttr("cf_ship_to_country"),
			},
		},
		Right: AddressBlock{
			Label: "BILL TO:",
			Lines: []string{
				billTo,
				rec.StringAttr("cf_billing_address"),
				cityLine(rec, "cf_bill_to_city", "cf_bill_to_state", "cf_bill_to_zip"),
				rec.StringAttr("cf_bill_to_country"),
			},
		},
	}

	channel := config.ChannelExternal
	totals := []TotalLine{
		{Label: "Sub-Total:", Value: rec.StringAttr("cf_subtotal_external")},
		{Label: "Sales Tax:", Value: rec.StringAttr("cf_tax_external")},
		{Label: "Shipping & Handling:", Value: rec.StringAttr("cf_shipping_n_handling_external")},
		{Label: "Other:", Value: rec.StringAttr("cf_others_external")},
		{Label: "Discount:", Value: rec.StringAttr("cf_discount_ext"), Discount: true},
		{Label: "Total (USD):", Value: rec.StringAttr("cf_total_btpo"), Emphasized: true},
	}
	if tpl == InternalPO {
		channel = config.ChannelInternal
		totals = []TotalLine{
			{Label: "Sub-Total:", Value: rec.StringAttr("cf_subtotal_n")},
			{Label: "Sales Tax:", Value: rec.StringAttr("cf_tax_c")},
			{Label: "Shipping & Handling:", Value: rec.StringAttr("cf_shipping_n_handling_c")},
			{Label: "Other:", Value: rec.StringAttr("cf_others_c")},
			{Label: "Discount:", Value: rec.StringAttr("cf_discount_int"), Discount: true},
			{Label: "Total (USD):", Value: rec.StringAttr("cf_total_ca"), Emphasized: true},
		}
	}

	model.Items = buildItems(rec, mappingFor(mappings, channel))
	model.Totals = totals
	return model
}

// buildItems decodes the channel's serialized table into display rows. A
// malformed table yields an empty item list, never an error.
func buildItems(rec *models.Record, mapping config.FieldMapping) []LineItem {
	rows := models.ParseTable(rec.StringAttr(mapping.TableAttr))

	items := make([]LineItem, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		item := LineItem{
			Description: row.Value(mapping.Description),
			PartNumber:  row.Value(mapping.PartNumber),
			Quantity:    row.Value(mapping.Quantity),
			UOM:         row.Value(mapping.UOM),
			Price:       row.Value(mapping.Price),
			Amount:      row.Value(mapping.Amount),
		}
		if item.Quantity == "" {
			item.Quantity = "0"
		}
		if item.Price == "" {
			item.Price = "0.00"
		}
		if item.Amount == "" {
			item.Amount = "0.00"
		}
		items = append(items, item)
	}
	return items
}

func mappingFor(mappings []config.FieldMapping, channel string) config.FieldMapping {
	for _, m := range mappings {
		if m.Channel == channel {
			return m
		}
	}
	return config.FieldMapping{}
}

func cityLine(rec *models.Record, cityKey, stateKey, zipKey string) string {
	return rec.StringAttr(cityKey) + " " + rec.StringAttr(stateKey) + " " + rec.StringAttr(zipKey)
}

// dateLayouts are the formats record date attributes arrive in.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// FormatDate renders a record date attribute as "02 Jan 2006". Unparseable
// values pass through unchanged; empty stays empty.
func FormatDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02 Jan 2006")
		}
	}
	return raw
}
