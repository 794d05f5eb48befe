package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// ElasticSink indexes attempts into Elasticsearch for searching the audit
// trail. The attempt ID is the document ID so a retried attempt overwrites
// itself instead of duplicating.
type ElasticSink struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticSink creates a sink for a comma separated list of node URLs.
func NewElasticSink(addresses, index string) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(addresses, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticSink{client: client, index: index}, nil
}

// Append indexes one attempt.
func (s *ElasticSink) Append(ctx context.Context, attempt database.VerificationAttempt) error {
	body, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: attempt.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index attempt %s: %w", attempt.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index attempt %s: %s", attempt.ID, res.Status())
	}
	return nil
}
