package elasticsearch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/doc-enricher/internal/elasticsearch"
	"github.com/DeafMist/doc-enricher/internal/models"
)

func TestBuildQuery(t *testing.T) {
	body := elasticsearch.BuildQuery(models.SearchQuery{RootPath: "/app:company_home/", TargetField: "genai:summary", MaxItems: 10})

	require.Equal(t, 0, body["from"])
	require.Equal(t, 10, body["size"])

	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	filter := boolQuery["filter"].([]map[string]any)
	require.Equal(t, map[string]any{"path": "/app:company_home/"}, filter[0]["prefix"])
	mustNot := boolQuery["must_not"].([]map[string]any)
	require.Equal(t, map[string]any{"field": "genai:summary"}, mustNot[0]["exists"])
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		require.True(t, strings.HasSuffix(r.URL.Path, "/nodes/_search"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.InDelta(t, 2, body["size"], 0)

		_, _ = io.WriteString(w, `{"hits":{"total":{"value":3},"hits":[
			{"_id":"x","_source":{"id":"a","name":"a.pdf"}},
			{"_id":"b","_source":{"name":"b.docx"}}]}}`)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.New(srv.URL, "nodes", nil)
	require.NoError(t, err)

	page, err := client.Search(context.Background(), models.SearchQuery{RootPath: "/root", TargetField: "genai:term", MaxItems: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.TotalItems)
	require.True(t, page.HasMoreItems)
	require.Equal(t, []models.SearchEntry{{ID: "a", Name: "a.pdf"}, {ID: "b", Name: "b.docx"}}, page.Entries)
}

func TestSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"bad query"}`)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.New(srv.URL, "nodes", nil)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), models.SearchQuery{RootPath: "/root", TargetField: "genai:term", MaxItems: 2})
	require.ErrorIs(t, err, models.ErrUnexpectedStatus)
}

func healthServer(t *testing.T, status string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/_cluster/health/nodes" {
			_, _ = io.WriteString(w, `{"cluster_name":"docker","status":"`+status+`"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	for _, status := range []string{"green", "yellow"} {
		client, err := elasticsearch.New(healthServer(t, status).URL, "nodes", nil)
		require.NoError(t, err)
		require.NoError(t, client.Health(context.Background()), status)
	}
}

func TestHealthRed(t *testing.T) {
	client, err := elasticsearch.New(healthServer(t, "red").URL, "nodes", nil)
	require.NoError(t, err)
	require.ErrorContains(t, client.Health(context.Background()), "index nodes health is red")
}
