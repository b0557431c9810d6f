package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/biotechnique/po-pipeline/internal/models"
)

// RecordGateway is the record store contract consumed by the pipeline. All
// calls are all-or-nothing: a returned error means nothing was applied.
type RecordGateway interface {
	GetRecord(ctx context.Context, recordID string) (*models.Record, error)
	UpdateRecord(ctx context.Context, recordID string, attributes map[string]string) error
	UpdateTableRows(ctx context.Context, recordID, tableFieldID string, rows []models.RowUpdate) error
}

// RecordClient talks to the record store over HTTP.
type RecordClient struct {
	client *Client
}

func NewRecordClient(client *Client) *RecordClient {
	return &RecordClient{client: client}
}

type recordEnvelope struct {
	Data *models.Record `json:"data"`
}

// GetRecord fetches the full record snapshot, including its serialized
// line-item tables.
func (r *RecordClient) GetRecord(ctx context.Context, recordID string) (*models.Record, error) {
	var envelope recordEnvelope
	if err := r.client.do(ctx, http.MethodGet, "/records/"+recordID+"/meta", nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to fetch record %s: %w", recordID, err)
	}
	if envelope.Data == nil || envelope.Data.Attributes == nil {
		return nil, fmt.Errorf("no data found for record %s", recordID)
	}
	return envelope.Data, nil
}

// UpdateRecord applies a partial attribute update to the record header.
func (r *RecordClient) UpdateRecord(ctx context.Context, recordID string, attributes map[string]string) error {
	body := map[string]any{
		"data": map[string]any{
			"type":       "records",
			"attributes": attributes,
		},
	}
	if err := r.client.do(ctx, http.MethodPatch, "/records/"+recordID, body, nil); err != nil {
		return fmt.Errorf("failed to update record %s: %w", recordID, err)
	}
	return nil
}

// UpdateTableRows replaces attribute values on the named table's rows,
// matched by row id.
func (r *RecordClient) UpdateTableRows(ctx context.Context, recordID, tableFieldID string, rows []models.RowUpdate) error {
	payload := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		attributes := map[string]any{"name": row.Name}
		for key, value := range row.Values {
			attributes[key] = value
		}
		payload = append(payload, map[string]any{
			"type":       "record-table-row",
			"attributes": attributes,
		})
	}

	body := map[string]any{"data": payload}
	path := "/records/" + recordID + "/table/" + tableFieldID
	if err := r.client.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to update table %s on record %s: %w", tableFieldID, recordID, err)
	}
	return nil
}
