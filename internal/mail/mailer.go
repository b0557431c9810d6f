// Package mail dispatches rendered documents by email. Dispatch is
// best-effort: misconfiguration or transport failure is reported but never
// aborts an otherwise-successful reconciliation.
package mail

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/document"
	"github.com/biotechnique/po-pipeline/internal/models"
)

// userPickerAttributes are the record attributes whose user ids contribute
// resolved email addresses to the recipient list.
var userPickerAttributes = []string{"cf_client_qa_approvers", "cf_bt_users"}

// EmailResolver resolves a directory user id to an email address.
type EmailResolver interface {
	ResolveUserEmail(ctx context.Context, userID string) (string, error)
}

// Dispatcher resolves recipients for a record and sends the rendered
// document as an attachment over SMTP.
type Dispatcher struct {
	smtp           config.SMTPConfig
	baseRecipients []string
	resolver       EmailResolver
}

func NewDispatcher(smtp config.SMTPConfig, baseRecipients []string, resolver EmailResolver) *Dispatcher {
	return &Dispatcher{smtp: smtp, baseRecipients: baseRecipients, resolver: resolver}
}

// Recipients builds the recipient list for a record: the configured base
// recipients, the record's client email attribute, and the user-picker
// attributes resolved to addresses. The result is deduplicated in insertion
// order and filtered to plausible addresses.
func (d *Dispatcher) Recipients(ctx context.Context, rec *models.Record) []string {
	seen := make(map[string]bool)
	var recipients []string

	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" || !strings.Contains(addr, "@") || seen[addr] {
			return
		}
		seen[addr] = true
		recipients = append(recipients, addr)
	}

	for _, addr := range d.baseRecipients {
		add(addr)
	}
	add(rec.StringAttr("cf_client_email_address_btpo"))

	for _, attr := range userPickerAttributes {
		value, ok := rec.Attributes[attr]
		if !ok || value == nil {
			continue
		}

		ids, isArray := value.([]any)
		if !isArray {
			ids = []any{value}
		}
		for _, id := range ids {
			email, err := d.resolver.ResolveUserEmail(ctx, models.CoerceString(id))
			if err != nil {
				log.Printf("WARN: failed to resolve email for user %v: %v", id, err)
				continue
			}
			add(email)
		}
	}

	return recipients
}

// Message is the composed email for one record.
type Message struct {
	Subject    string
	Body       string
	Attachment string
}

// BuildMessage composes the invoice email subject, body, and attachment name
// from the record.
func BuildMessage(rec *models.Record, recordID string) Message {
	clientName := rec.StringAttr("cf_client")
	if clientName == "" {
		clientName = "Client"
	}

	invoiceNum := rec.StringAttr("pkey")
	if invoiceNum == "" {
		invoiceNum = recordID
	}
	invoiceNum += "-INV"

	poNum := rec.StringAttr("cf_po_number")
	if poNum == "" {
		poNum = "N/A"
	}

	dueDate := document.FormatDate(rec.StringAttr("cf_due_date_client_invoice"))
	if dueDate == "" {
		dueDate = "N/A"
	}

	body := fmt.Sprintf(`Hello %s Team,

I hope you are doing well!

Attached is a copy of the Invoice # %s  billed on your PO # %s.

Invoice Amount: %s
Due Date: %s

E-mail remittance details: BTQAR@biotech.com
Preferred method of payment: ACH or wire transfer

Thank you for choosing BioTechnique LLC!
We value you as a customer and appreciate your continued business with us!


Best regards,
BioTechnique Team`,
		clientName,
		invoiceNum,
		poNum,
		groupedMoney(rec.StringAttr("cf_total_w_handlingfe")),
		dueDate,
	)

	return Message{
		Subject:    fmt.Sprintf("Invoice %s - %s", invoiceNum, clientName),
		Body:       body,
		Attachment: "Invoice.pdf",
	}
}

// Send delivers the document to the recipients. A missing SMTP host skips
// dispatch with a warning instead of failing.
func (d *Dispatcher) Send(recipients []string, pdfBytes []byte, msg Message) error {
	if d.smtp.Host == "" {
		log.Println("WARN: SMTP configuration missing, email skipped")
		return nil
	}
	if len(recipients) == 0 {
		log.Println("No valid recipients for email.")
		return nil
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", d.smtp.User, "BioTechnique PO System")
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	m.Attach(msg.Attachment, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(pdfBytes)
		return err
	}))

	dialer := gomail.NewDialer(d.smtp.Host, d.smtp.Port, d.smtp.User, d.smtp.Pass)
	// Port 465 requires implicit TLS; 587 upgrades via STARTTLS.
	dialer.SSL = d.smtp.Port == 465

	if err := dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via %s:%d: %w", d.smtp.Host, d.smtp.Port, err)
	}
	return nil
}

// groupedMoney formats a monetary attribute with thousands separators for
// the email body, e.g. $12,345.60.
func groupedMoney(value string) string {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		amount = decimal.Zero
	}

	fixed := amount.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	intPart := parts[0]

	var grouped []string
	for len(intPart) > 3 {
		grouped = append([]string{intPart[len(intPart)-3:]}, grouped...)
		intPart = intPart[:len(intPart)-3]
	}
	grouped = append([]string{intPart}, grouped...)

	result := "$" + strings.Join(grouped, ",") + "." + parts[1]
	if negative {
		return "-" + result
	}
	return result
}
