// Package render is the document layout engine: it turns a document.Model
// into a paginated PDF on a fixed Letter grid.
package render

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/jung-kurt/gofpdf"

	"github.com/biotechnique/po-pipeline/internal/document"

	"github.com/shopspring/decimal"
)

// Fixed page grid, in points. Letter is 612x792.
const (
	marginTop    = 36.0
	marginBottom = 36.0
	marginLeft   = 54.0
	contentWidth = 504.0
	startX       = marginLeft

	fontFamily = "Times"
	sizeNormal = 11.0
	sizeHeader = 12.0
	sizeSmall  = 9.0
	sizeTitle  = 20.0
	sizeTotal  = 14.0
	sizeTable  = 10.0

	lineHeight = 12.0
	fieldStep  = 15.0
	rowHeight  = 16.0

	// Any drawing step that would push the cursor past bodyLimit starts a
	// new page first; a totals block will not start below totalsLimit.
	bodyLimit   = 700.0
	totalsLimit = 650.0

	logoWidth  = 140.0
	valueWidth = 80.0
)

// itemColumns are the proportional line-item column widths; they sum to 1.
var itemColumns = []float64{0.40, 0.15, 0.10, 0.10, 0.125, 0.125}

var itemHeaders = []string{"Item Description", "Part Number", "Qty", "UOM", "Price", "Amount"}

var itemAligns = []string{"L", "L", "C", "C", "R", "R"}

var bankDetails = [][2]string{
	{"Beneficiary Name:", "BIOTECHNIQUE LLC"},
	{"Receiving Bank Name:", "East West Bank"},
	{"Beneficiary Account:", "80 64012910"},
	{"Bank Routing Number: (Domestic wires)", "3 | 2 | 2 | 0 | 7 | 0 | 3 | 8 | 1"},
	{"Bank Routing/Swift Code: (International wires)", "EWBKUS66XXX"},
	{"Remittance Details E-mail:", "BTQAR@biotech.com"},
}

var remittanceAddress = []string{
	"700 Corporate Center",
	"Drive, Suite 201",
	"Pomona, CA 91768",
}

const closingTerms = "Please state the purchase order number on the invoice, delivery note, and all other correspondence.\n\n" +
	"Only one purchase order number shall be used on each invoice.\n" +
	"Soft copy invoice is preferred. Please send to BTQAP@biotech.com."

// renderEpoch pins the PDF metadata dates so identical models produce
// byte-identical output.
var renderEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// cursor is the explicit vertical layout state threaded through every
// drawing step: current y position on the current page.
type cursor struct {
	pdf *gofpdf.Fpdf
	y   float64
}

// ensure starts a new page when the cursor sits past the given limit and
// reports whether it did.
func (c *cursor) ensure(limit float64) bool {
	if c.y > limit {
		c.pdf.AddPage()
		c.y = marginTop
		return true
	}
	return false
}

func (c *cursor) setFont(style string, size float64) {
	c.pdf.SetFont(fontFamily, style, size)
}

// text draws a single aligned run inside a fixed-width box at an absolute
// position, independent of the cursor.
func (c *cursor) text(x, y, w float64, value, align string) {
	c.pdf.SetXY(x, y)
	c.pdf.CellFormat(w, lineHeight, value, "", 0, align, false, 0, "")
}

// Renderer renders document models. LogoPath points at the logo asset; a
// missing or unreadable asset falls back to a text title.
type Renderer struct {
	LogoPath string
}

func NewRenderer(logoPath string) *Renderer {
	return &Renderer{LogoPath: logoPath}
}

// Render produces the PDF bytes for the given model. Output depends only on
// the model and the logo asset: rendering the same model twice yields
// byte-identical documents.
func (r *Renderer) Render(doc document.Model) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(marginLeft, marginTop, marginLeft)
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetCreationDate(renderEpoch)
	pdf.SetModificationDate(renderEpoch)
	// Catalog objects are otherwise written in map-iteration order, which
	// reorders font objects between runs.
	pdf.SetCatalogSort(true)
	pdf.AddPage()

	cur := &cursor{pdf: pdf, y: marginTop}

	r.drawLogo(cur)
	drawHeaderFields(cur, doc.Header)

	if doc.Template == document.ClientInvoice {
		drawInvoiceAddresses(cur, doc)
		drawItemsTable(cur, doc.Items)
		drawTotals(cur, doc.Totals, 200)
		drawInvoiceFooter(cur)
	} else {
		drawPurchaseOrderAddresses(cur, doc)
		drawItemsTable(cur, doc.Items)
		cur.ensure(totalsLimit)
		drawTotals(cur, doc.Totals, 120)
		drawPurchaseOrderFooter(cur)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render %s document: %w", doc.Template, err)
	}
	return buf.Bytes(), nil
}

// drawLogo places the logo at a fixed position, or a bold text title at the
// same coordinates when the asset cannot be loaded. A missing logo must
// never fail the render.
func (r *Renderer) drawLogo(cur *cursor) {
	if r.logoUsable() {
		cur.pdf.ImageOptions(r.LogoPath, startX, marginTop, logoWidth, 0, false, gofpdf.ImageOptions{}, 0, "")
		return
	}
	cur.setFont("B", sizeTitle)
	cur.text(startX, marginTop, 200, document.CompanyName, "L")
}

// logoUsable verifies the asset decodes as an image before handing it to the
// PDF writer, whose error state would otherwise poison the whole document.
func (r *Renderer) logoUsable() bool {
	if r.LogoPath == "" {
		return false
	}
	f, err := os.Open(r.LogoPath)
	if err != nil {
		return false
	}
	defer f.Close()

	_, _, err = image.DecodeConfig(f)
	return err == nil
}

// drawHeaderFields draws the top-right label/value block. Labels are
// right-aligned ending at a fixed x, values left-aligned from a fixed x, so
// value length never breaks alignment.
func drawHeaderFields(cur *cursor, fields []document.Field) {
	const boxX = 320.0
	y := marginTop + 5

	for _, field := range fields {
		cur.setFont("B", sizeNormal)
		cur.text(boxX, y, 130, field.Label, "R")

		style := ""
		if field.Bold {
			style = "B"
		}
		value := field.Value
		if value == "" {
			value = "N/A"
		}
		cur.setFont(style, sizeNormal)
		cur.text(boxX+135, y, 150, value, "L")
		y += fieldStep
	}
}

func drawAddressBlock(cur *cursor, block document.AddressBlock, labelX, contentX, y float64) {
	cur.setFont("B", sizeNormal)
	cur.text(labelX, y, contentX-labelX, block.Label, "L")
	cur.setFont("", sizeNormal)
	for i, line := range block.Lines {
		cur.text(contentX, y+float64(i)*lineHeight, 240, line, "L")
	}
}

func drawInvoiceAddresses(cur *cursor, doc document.Model) {
	const blockY = 155.0
	midX := startX + contentWidth/2

	drawAddressBlock(cur, doc.Left, startX+5, startX+95, blockY)
	drawAddressBlock(cur, doc.Right, midX+10, midX+80, blockY)

	cur.y = blockY + 85

	cur.setFont("B", sizeNormal)
	cur.text(startX, cur.y, 50, "Project:", "L")
	project := doc.Project
	if project == "" {
		project = "N/A"
	}
	cur.setFont("", sizeNormal)
	cur.text(startX+50, cur.y, contentWidth-50, project, "L")
	cur.y += 20
}

func drawPurchaseOrderAddresses(cur *cursor, doc document.Model) {
	const supplierY = 155.0
	if doc.Supplier != nil {
		drawAddressBlock(cur, *doc.Supplier, startX+10, startX+90, supplierY)
	}

	blockY := supplierY + 90
	midX := startX + contentWidth/2
	drawAddressBlock(cur, doc.Left, startX+10, startX+80, blockY)
	drawAddressBlock(cur, doc.Right, midX+10, midX+80, blockY)

	cur.y = blockY + 80
}

func drawItemsTable(cur *cursor, items []document.LineItem) {
	cur.y += 10
	cur.ensure(bodyLimit)

	cur.setFont("B", sizeHeader)
	cur.text(startX, cur.y, contentWidth, "Purchase Order Items", "L")
	cur.y += 18

	drawItemsHeader(cur)
	for _, item := range items {
		if cur.ensure(bodyLimit) {
			drawItemsHeader(cur)
		}
		cells := []string{
			item.Description,
			item.PartNumber,
			item.Quantity,
			item.UOM,
			"$" + item.Price,
			"$" + item.Amount,
		}
		drawItemsRow(cur, cells, "", sizeTable)
	}
}

func drawItemsHeader(cur *cursor) {
	drawItemsRow(cur, itemHeaders, "B", sizeTable)
}

func drawItemsRow(cur *cursor, cells []string, style string, size float64) {
	cur.setFont(style, size)
	border := ""
	if style == "B" {
		border = "B"
	}

	cur.pdf.SetXY(startX, cur.y)
	for i, cell := range cells {
		cur.pdf.CellFormat(itemColumns[i]*contentWidth, rowHeight, cell, border, 0, itemAligns[i], false, 0, "")
	}
	cur.y += rowHeight
}

func drawTotals(cur *cursor, totals []document.TotalLine, labelWidth float64) {
	cur.y += lineHeight
	valueX := startX + contentWidth - valueWidth
	labelX := valueX - labelWidth

	for _, line := range totals {
		style, size := "", sizeNormal
		if line.Emphasized {
			style, size = "B", sizeTotal
			cur.y += 8
		}
		cur.ensure(bodyLimit)
		cur.setFont(style, size)
		cur.text(labelX, cur.y, labelWidth, line.Label, "R")
		cur.text(valueX, cur.y, valueWidth, money(line.Value, line.Discount), "R")
		cur.y += fieldStep
	}
}

// money formats a monetary attribute as a fixed-point currency string. An
// absent or unparseable value renders as $0.00; a positive discount line
// carries a leading minus.
func money(value string, discount bool) string {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		amount = decimal.Zero
	}
	formatted := "$" + amount.StringFixed(2)
	if discount && amount.IsPositive() {
		return "-" + formatted
	}
	return formatted
}

func drawPurchaseOrderFooter(cur *cursor) {
	cur.y += 48
	cur.ensure(bodyLimit)

	cur.pdf.Line(startX, cur.y, startX+contentWidth, cur.y)
	cur.y += lineHeight

	cur.setFont("", 10)
	cur.pdf.SetXY(startX, cur.y)
	cur.pdf.MultiCell(contentWidth, lineHeight, closingTerms, "", "C", false)
	cur.y = cur.pdf.GetY()
}

func drawInvoiceFooter(cur *cursor) {
	cur.y += 18
	cur.ensure(bodyLimit)

	centered := func(style string, text string, red bool) {
		if red {
			cur.pdf.SetTextColor(255, 0, 0)
		}
		cur.setFont(style, sizeSmall)
		cur.text(startX, cur.y, contentWidth, text, "C")
		cur.pdf.SetTextColor(0, 0, 0)
		cur.y += lineHeight
	}

	centered("", "Thank you for choosing BioTechnique LLC!", false)
	centered("", "We value you as a customer and appreciate your business with us!", false)
	cur.y += 6
	centered("", "Preferred method of payment: ACH or wire transfer", true)
	cur.y += 6
	centered("B", "BANK INFORMATION FOR ACH OR WIRE TRANSFER PAYMENTS", true)
	cur.y += 4

	centerX := startX + contentWidth/2
	halfWidth := contentWidth/2 - 20

	for _, detail := range bankDetails {
		cur.ensure(bodyLimit)
		cur.setFont("", sizeSmall)
		cur.text(startX, cur.y, halfWidth, detail[0], "R")
		cur.setFont("B", sizeSmall)
		cur.text(centerX+10, cur.y, halfWidth, detail[1], "L")
		cur.y += 11
	}

	cur.y += 6
	cur.ensure(bodyLimit)

	cur.pdf.SetTextColor(0, 0, 255)
	cur.setFont("B", sizeSmall)
	cur.text(startX, cur.y, halfWidth, "HQ REMITTANCE ADDRESS FOR CHECK PAYMENTS", "R")
	cur.pdf.SetTextColor(0, 0, 0)

	cur.text(centerX+10, cur.y, halfWidth, "BIOTECHNIQUE LLC", "L")
	cur.setFont("", sizeSmall)
	for i, line := range remittanceAddress {
		cur.text(centerX+10, cur.y+float64(i+1)*10, halfWidth, line, "L")
	}
	cur.y += float64(len(remittanceAddress))*10 + 25
}
