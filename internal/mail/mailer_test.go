package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/models"
)

type stubResolver struct {
	emails map[string]string
	errs   map[string]error
}

func (s *stubResolver) ResolveUserEmail(ctx context.Context, userID string) (string, error) {
	if err, ok := s.errs[userID]; ok {
		return "", err
	}
	return s.emails[userID], nil
}

func TestDispatcher_Recipients(t *testing.T) {
	t.Run("should combine base recipients, the client address, and resolved users", func(t *testing.T) {
		resolver := &stubResolver{emails: map[string]string{
			"u-1": "qa@biotech.com",
			"u-2": "buyer@biotech.com",
		}}
		dispatcher := NewDispatcher(config.SMTPConfig{}, []string{"ap@biotech.com"}, resolver)

		rec := &models.Record{Attributes: map[string]any{
			"cf_client_email_address_btpo": "client@acme.com",
			"cf_client_qa_approvers":       []any{"u-1"},
			"cf_bt_users":                  "u-2",
		}}

		recipients := dispatcher.Recipients(context.Background(), rec)

		assert.Equal(t, []string{"ap@biotech.com", "client@acme.com", "qa@biotech.com", "buyer@biotech.com"}, recipients)
	})

	t.Run("should deduplicate addresses in insertion order", func(t *testing.T) {
		resolver := &stubResolver{emails: map[string]string{"u-1": "ap@biotech.com"}}
		dispatcher := NewDispatcher(config.SMTPConfig{}, []string{"ap@biotech.com", "po@biotech.com"}, resolver)

		rec := &models.Record{Attributes: map[string]any{
			"cf_client_email_address_btpo": "po@biotech.com",
			"cf_bt_users":                  []any{"u-1"},
		}}

		recipients := dispatcher.Recipients(context.Background(), rec)

		assert.Equal(t, []string{"ap@biotech.com", "po@biotech.com"}, recipients)
	})

	t.Run("should drop implausible addresses and failed resolutions", func(t *testing.T) {
		resolver := &stubResolver{
			emails: map[string]string{"u-1": "qa@biotech.com", "u-3": ""},
			errs:   map[string]error{"u-2": errors.New("directory down")},
		}
		dispatcher := NewDispatcher(config.SMTPConfig{}, []string{"not-an-address", " "}, resolver)

		rec := &models.Record{Attributes: map[string]any{
			"cf_client_qa_approvers": []any{"u-1", "u-2", "u-3"},
		}}

		recipients := dispatcher.Recipients(context.Background(), rec)

		assert.Equal(t, []string{"qa@biotech.com"}, recipients)
	})

	t.Run("should return nothing for a record with no addresses", func(t *testing.T) {
		dispatcher := NewDispatcher(config.SMTPConfig{}, nil, &stubResolver{})

		recipients := dispatcher.Recipients(context.Background(), &models.Record{Attributes: map[string]any{}})

		assert.Empty(t, recipients)
	})
}

func TestBuildMessage(t *testing.T) {
	t.Run("should compose subject and body from the record", func(t *testing.T) {
		rec := &models.Record{Attributes: map[string]any{
			"pkey":                       "PO-1001",
			"cf_client":                  "Acme Bio",
			"cf_po_number":               "CUST-77",
			"cf_due_date_client_invoice": "2026-02-08",
			"cf_total_w_handlingfe":      "12345.6",
		}}

		msg := BuildMessage(rec, "rec-1")

		assert.Equal(t, "Invoice PO-1001-INV - Acme Bio", msg.Subject)
		assert.Equal(t, "Invoice.pdf", msg.Attachment)
		assert.Contains(t, msg.Body, "Hello Acme Bio Team,")
		assert.Contains(t, msg.Body, "Invoice # PO-1001-INV")
		assert.Contains(t, msg.Body, "PO # CUST-77")
		assert.Contains(t, msg.Body, "Invoice Amount: $12,345.60")
		assert.Contains(t, msg.Body, "Due Date: 08 Feb 2026")
		assert.Contains(t, msg.Body, "BTQAR@biotech.com")
	})

	t.Run("should fall back to placeholders for missing attributes", func(t *testing.T) {
		rec := &models.Record{Attributes: map[string]any{}}

		msg := BuildMessage(rec, "rec-1")

		assert.Equal(t, "Invoice rec-1-INV - Client", msg.Subject)
		assert.Contains(t, msg.Body, "Hello Client Team,")
		assert.Contains(t, msg.Body, "PO # N/A")
		assert.Contains(t, msg.Body, "Due Date: N/A")
		assert.Contains(t, msg.Body, "Invoice Amount: $0.00")
	})
}

func TestDispatcher_Send(t *testing.T) {
	t.Run("should skip dispatch without error when SMTP is unconfigured", func(t *testing.T) {
		dispatcher := NewDispatcher(config.SMTPConfig{}, nil, &stubResolver{})

		err := dispatcher.Send([]string{"ap@biotech.com"}, []byte("%PDF"), Message{Subject: "Invoice"})

		assert.NoError(t, err)
	})

	t.Run("should skip dispatch without error when no recipients remain", func(t *testing.T) {
		dispatcher := NewDispatcher(config.SMTPConfig{Host: "smtp.biotech.com", Port: 587}, nil, &stubResolver{})

		err := dispatcher.Send(nil, []byte("%PDF"), Message{Subject: "Invoice"})

		assert.NoError(t, err)
	})
}

func TestGroupedMoney(t *testing.T) {
	t.Run("should group thousands and fix two decimals", func(t *testing.T) {
		assert.Equal(t, "$1,345.95", groupedMoney("1345.95"))
		assert.Equal(t, "$1,234,567.80", groupedMoney("1234567.8"))
		assert.Equal(t, "$75.00", groupedMoney("75"))
	})

	t.Run("should keep the sign outside the currency prefix", func(t *testing.T) {
		assert.Equal(t, "-$1,000.00", groupedMoney("-1000"))
	})

	t.Run("should treat unparseable values as zero", func(t *testing.T) {
		assert.Equal(t, "$0.00", groupedMoney(""))
		assert.Equal(t, "$0.00", groupedMoney("n/a"))
	})
}
