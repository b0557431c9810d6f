package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/biotechnique/po-pipeline/internal/models"
)

// DirectoryGateway is the identity/reference directory contract. Search
// calls return at most one match; a nil record with a nil error means no
// match was found.
type DirectoryGateway interface {
	GetUser(ctx context.Context, userID string) (*models.Record, error)
	GetPerson(ctx context.Context, personID string) (*models.Record, error)
	SearchGroup(ctx context.Context, aql string) (*models.Record, error)
	SearchObject(ctx context.Context, objectID, aql string) (*models.Record, error)
}

// DirectoryClient talks to the directory over HTTP.
type DirectoryClient struct {
	client *Client
}

func NewDirectoryClient(client *Client) *DirectoryClient {
	return &DirectoryClient{client: client}
}

type searchEnvelope struct {
	Data []*models.Record `json:"data"`
}

func (d *DirectoryClient) GetUser(ctx context.Context, userID string) (*models.Record, error) {
	var envelope recordEnvelope
	if err := d.client.do(ctx, http.MethodGet, "/users/"+userID, nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return envelope.Data, nil
}

func (d *DirectoryClient) GetPerson(ctx context.Context, personID string) (*models.Record, error) {
	var envelope recordEnvelope
	if err := d.client.do(ctx, http.MethodGet, "/people/"+personID, nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to fetch person %s: %w", personID, err)
	}
	return envelope.Data, nil
}

func (d *DirectoryClient) SearchGroup(ctx context.Context, aql string) (*models.Record, error) {
	return d.search(ctx, "/groups/search", aql)
}

func (d *DirectoryClient) SearchObject(ctx context.Context, objectID, aql string) (*models.Record, error) {
	return d.search(ctx, "/objects/"+objectID+"/search", aql)
}

func (d *DirectoryClient) search(ctx context.Context, path, aql string) (*models.Record, error) {
	var envelope searchEnvelope
	if err := d.client.do(ctx, http.MethodPost, path, map[string]string{"aql": aql}, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}
	return envelope.Data[0], nil
}
