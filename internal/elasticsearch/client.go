package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/models"
)

// Index fields of a mirrored repository node. Node properties are indexed
// under their qualified names, e.g. "genai:summary".
const (
	fieldID   = "id"
	fieldName = "name"
	fieldPath = "path"
)

// Client searches a mirror of the repository kept in Elasticsearch.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr, index string, log *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Client{es: es, index: index, log: log}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// BuildQuery returns the request body selecting nodes under root that do
// not carry targetField yet, sorted by id ascending.
func BuildQuery(q models.SearchQuery) map[string]any {
	root := strings.TrimRight(q.RootPath, "/") + "/"
	return map[string]any{
		"from":             q.SkipCount,
		"size":             q.MaxItems,
		"track_total_hits": true,
		"_source":          []string{fieldID, fieldName},
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"prefix": map[string]any{fieldPath: root}},
				},
				"must_not": []map[string]any{
					{"exists": map[string]any{"field": q.TargetField}},
				},
			},
		},
		"sort": []map[string]any{
			{fieldID: map[string]any{"order": "asc"}},
		},
	}
}

// Search returns one page of unprocessed nodes.
func (c *Client) Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error) {
	payload, err := json.Marshal(BuildQuery(q))
	if err != nil {
		return models.SearchPage{}, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return models.SearchPage{}, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return models.SearchPage{}, &models.StatusError{Op: "search", Status: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return models.SearchPage{}, fmt.Errorf("decode search response: %w", err)
	}

	page := models.SearchPage{
		Entries:    make([]models.SearchEntry, 0, len(parsed.Hits.Hits)),
		TotalItems: parsed.Hits.Total.Value,
	}
	for _, hit := range parsed.Hits.Hits {
		id := hit.Source.ID
		if id == "" {
			id = hit.ID
		}
		page.Entries = append(page.Entries, models.SearchEntry{ID: id, Name: hit.Source.Name})
	}
	page.HasMoreItems = page.TotalItems > int64(q.SkipCount+len(page.Entries))

	c.log.Debug("search page fetched",
		slog.String("index", c.index),
		slog.Int("hits", len(page.Entries)),
		slog.Int64("total", page.TotalItems),
	)
	return page, nil
}

// Health reports whether the mirror index can serve searches. A red index
// has unassigned primaries and would return partial pages.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
		c.es.Cluster.Health.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("index health: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return &models.StatusError{Op: "index health", Status: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode index health: %w", err)
	}
	if health.Status == "red" {
		return fmt.Errorf("index %s health is red", c.index)
	}

	c.log.Debug("index health", slog.String("index", c.index), slog.String("status", health.Status))
	return nil
}
