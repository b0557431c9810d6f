// Package pipeline orchestrates one record's full run: fetch, reconcile,
// update, re-fetch, enrich, render, dispatch.
package pipeline

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/document"
	"github.com/biotechnique/po-pipeline/internal/gateway"
	"github.com/biotechnique/po-pipeline/internal/mail"
	"github.com/biotechnique/po-pipeline/internal/models"
	"github.com/biotechnique/po-pipeline/internal/reconcile"
	"github.com/biotechnique/po-pipeline/pkg/checksum"
)

// Enricher resolves reference attributes in place, best-effort.
type Enricher interface {
	Enrich(ctx context.Context, attrs map[string]any)
}

// Renderer renders a document model to PDF bytes.
type Renderer interface {
	Render(doc document.Model) ([]byte, error)
}

// Dispatcher resolves recipients and delivers the rendered document.
type Dispatcher interface {
	Recipients(ctx context.Context, rec *models.Record) []string
	Send(recipients []string, pdfBytes []byte, msg mail.Message) error
}

// Service drives the pipeline for a single record per invocation. No state
// survives between invocations; the record snapshot is superseded by a
// re-fetch after every header update.
type Service struct {
	records    gateway.RecordGateway
	enricher   Enricher
	renderer   Renderer
	dispatcher Dispatcher
	mappings   []config.FieldMapping
}

func NewService(records gateway.RecordGateway, enricher Enricher, renderer Renderer, dispatcher Dispatcher, mappings []config.FieldMapping) *Service {
	return &Service{
		records:    records,
		enricher:   enricher,
		renderer:   renderer,
		dispatcher: dispatcher,
		mappings:   mappings,
	}
}

// Process runs the full pipeline for one record id. Record store failures
// abort the run; dispatch failures are logged and recovered.
func (s *Service) Process(ctx context.Context, recordID string) error {
	runID := uuid.NewString()
	log.Printf("[run %s] Processing record %s", runID, recordID)

	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return &models.AppError{RecordID: recordID, Stage: "fetch", Message: "failed to fetch record", Err: err}
	}

	rec, err = s.Synchronize(ctx, recordID, rec)
	if err != nil {
		return &models.AppError{RecordID: recordID, Stage: "synchronize", Message: "failed to synchronize totals", Err: err}
	}

	log.Println("Resolving reference data...")
	s.enricher.Enrich(ctx, rec.Attributes)

	log.Println("Generating PDF...")
	pdfBytes, err := s.renderer.Render(document.Build(rec, s.mappings, document.ClientInvoice))
	if err != nil {
		return &models.AppError{RecordID: recordID, Stage: "render", Message: "failed to render document", Err: err}
	}
	log.Printf("Rendered document: %d bytes, checksum %s", len(pdfBytes), checksum.Digest(pdfBytes))

	recipients := s.dispatcher.Recipients(ctx, rec)
	if len(recipients) == 0 {
		log.Println("No valid recipients for email.")
		log.Printf("[run %s] Finished record %s", runID, recordID)
		return nil
	}

	msg := mail.BuildMessage(rec, recordID)
	log.Printf("Sending email to: %v", recipients)
	if err := s.dispatcher.Send(recipients, pdfBytes, msg); err != nil {
		// Dispatch is best-effort; reconciliation results stand.
		log.Printf("WARN: email dispatch failed: %v", err)
	}

	log.Printf("[run %s] Finished record %s", runID, recordID)
	return nil
}

// Synchronize reconciles every configured channel present on the record,
// pushes row updates and subtotal updates, and returns the authoritative
// post-update snapshot. Row pushes and the subtotal push both complete
// before the returned record reaches rendering. The subtotal is pushed
// whenever a channel's table is non-empty, even when no individual row
// changed, so header and table can never drift apart silently.
func (s *Service) Synchronize(ctx context.Context, recordID string, rec *models.Record) (*models.Record, error) {
	subtotalUpdates := make(map[string]string)

	for _, mapping := range s.mappings {
		tableRaw := rec.StringAttr(mapping.TableAttr)
		if tableRaw == "" {
			continue
		}

		result := reconcile.Reconcile(tableRaw, mapping)

		if len(result.Rows) > 0 {
			log.Printf("Table %s: found %d rows needing update", mapping.TableFieldID, len(result.Rows))
			if err := s.records.UpdateTableRows(ctx, recordID, mapping.TableFieldID, result.Rows); err != nil {
				return nil, err
			}
		}

		if result.HasSubtotal {
			subtotalUpdates[mapping.SubtotalAttr] = result.Subtotal
		}
	}

	if len(subtotalUpdates) == 0 {
		log.Println("No subtotal updates required.")
		return rec, nil
	}

	log.Printf("Updating record subtotals: %v", subtotalUpdates)
	if err := s.records.UpdateRecord(ctx, recordID, subtotalUpdates); err != nil {
		return nil, err
	}

	// Downstream stages must see the freshly written subtotals, never the
	// pre-update snapshot.
	return s.records.GetRecord(ctx, recordID)
}

// RenderDocument fetches, enriches, and renders a record without mutating
// it. Template selection: ClientInvoice renders as-is; for purchase orders
// the variant follows the record's PO type.
func (s *Service) RenderDocument(ctx context.Context, recordID string, tpl document.Template) ([]byte, error) {
	rec, err := s.records.GetRecord(ctx, recordID)
	if err != nil {
		return nil, &models.AppError{RecordID: recordID, Stage: "fetch", Message: "failed to fetch record", Err: err}
	}

	s.enricher.Enrich(ctx, rec.Attributes)

	if tpl != document.ClientInvoice {
		tpl = document.TemplateForRecord(rec)
	}

	pdfBytes, err := s.renderer.Render(document.Build(rec, s.mappings, tpl))
	if err != nil {
		return nil, &models.AppError{RecordID: recordID, Stage: "render", Message: "failed to render document", Err: err}
	}
	return pdfBytes, nil
}
