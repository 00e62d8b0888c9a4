// Package timeline records human-readable entries about the lifecycle of a
// VM request, indexed for audit views and support tooling. Recording is
// best-effort: callers log failures and move on, a command's outcome never
// depends on the timeline.
package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Entry is one line in a request's timeline.
type Entry struct {
	RequestID  string    `json:"requestId"`
	TenantID   string    `json:"tenantId"`
	Message    string    `json:"message"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Recorder persists timeline entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// ElasticConfig holds the connection settings for the Elasticsearch recorder.
type ElasticConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

// ElasticRecorder indexes timeline entries into Elasticsearch, one document
// per entry.
type ElasticRecorder struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticRecorder creates a recorder backed by Elasticsearch.
func NewElasticRecorder(cfg ElasticConfig) (*ElasticRecorder, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticRecorder{
		client: client,
		index:  cfg.Index,
	}, nil
}

// Record indexes one entry.
func (r *ElasticRecorder) Record(ctx context.Context, entry Entry) error {
	doc := map[string]interface{}{
		"requestId":  entry.RequestID,
		"tenantId":   entry.TenantID,
		"message":    entry.Message,
		"actor":      entry.Actor,
		"occurredAt": entry.OccurredAt.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal timeline entry")
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: uuid.NewString(),
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.client)
	if err != nil {
		return errors.Wrap(err, "failed to index timeline entry")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if decodeErr := json.NewDecoder(res.Body).Decode(&e); decodeErr != nil {
			return errors.Errorf("error indexing timeline entry: %s", res.Status())
		}
		return errors.Errorf("error indexing timeline entry: %v", e["error"])
	}

	log.Info().
		Str("requestId", entry.RequestID).
		Str("tenantId", entry.TenantID).
		Msg("Timeline entry indexed")

	return nil
}

// Noop discards entries. Used when no Elasticsearch endpoint is configured.
type Noop struct{}

// Record implements Recorder and does nothing.
func (Noop) Record(_ context.Context, _ Entry) error { return nil }
