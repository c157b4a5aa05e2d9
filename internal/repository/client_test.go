package repository_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/doc-enricher/internal/models"
	"github.com/DeafMist/doc-enricher/internal/repository"
)

const nodes = "/alfresco/api/-default-/public/alfresco/versions/1/nodes/"

func newClient(t *testing.T, h http.HandlerFunc) *repository.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return repository.New(repository.Config{BaseURL: srv.URL, User: "admin", Password: "secret"}, nil)
}

func TestBuildQuery(t *testing.T) {
	got := repository.BuildQuery("/app:company_home/st:sites", "genai:summary")
	require.Equal(t, `PATH:"/app:company_home/st:sites//*" AND NOT EXISTS:"genai:summary"`, got)
}

func TestSearchSendsContract(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/alfresco/api/-default-/public/search/versions/1/search", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "admin", user)
		require.Equal(t, "secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		query := body["query"].(map[string]any)
		require.Equal(t, "afts", query["language"])
		require.Equal(t, `PATH:"/root//*" AND NOT EXISTS:"genai:term"`, query["query"])
		sort := body["sort"].([]any)[0].(map[string]any)
		require.Equal(t, "id", sort["field"])
		require.Equal(t, true, sort["ascending"])
		paging := body["paging"].(map[string]any)
		require.InDelta(t, 5, paging["maxItems"], 0)
		require.InDelta(t, 0, paging["skipCount"], 0)

		_, _ = io.WriteString(w, `{"list":{"pagination":{"totalItems":7,"hasMoreItems":true},
			"entries":[{"entry":{"id":"a","name":"a.pdf"}},{"entry":{"id":"b","name":"b.docx"}}]}}`)
	})

	page, err := client.Search(context.Background(), models.SearchQuery{
		RootPath: "/root", TargetField: "genai:term", MaxItems: 5,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), page.TotalItems)
	require.True(t, page.HasMoreItems)
	require.Equal(t, []models.SearchEntry{{ID: "a", Name: "a.pdf"}, {ID: "b", Name: "b.docx"}}, page.Entries)
}

func TestGetNodeAndUpdateNode(t *testing.T) {
	var update map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, nodes+"n1", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"entry":{"id":"n1","name":"doc.pdf","nodeType":"cm:content",
				"parentId":"p1","aspectNames":["cm:titled"],"properties":{"cm:title":"Doc"}}}`)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
			_, _ = io.WriteString(w, `{"entry":{"id":"n1"}}`)
		}
	})

	doc, err := client.GetNode(context.Background(), "n1")
	require.NoError(t, err)
	require.Equal(t, "doc.pdf", doc.Name)
	require.Equal(t, "p1", doc.ParentID)
	require.Equal(t, []string{"cm:titled"}, doc.Aspects)
	require.Equal(t, "Doc", doc.Properties["cm:title"])

	err = client.UpdateNode(context.Background(), "n1", models.NodeUpdate{
		Properties:  map[string]any{"genai:summary": "text"},
		AspectNames: []string{"cm:titled", "genai:summarizable"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"genai:summary": "text"}, update["properties"])
	require.Equal(t, []any{"cm:titled", "genai:summarizable"}, update["aspectNames"])
}

func TestGetNodeNotFound(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetNode(context.Background(), "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, err, models.ErrUnexpectedStatus)
}

func TestRenditionStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   models.RenditionStatus
	}{
		{name: "created", status: http.StatusOK, body: `{"entry":{"id":"pdf","status":"CREATED"}}`, want: models.RenditionCreated},
		{name: "not created", status: http.StatusOK, body: `{"entry":{"id":"pdf","status":"NOT_CREATED"}}`, want: models.RenditionNotCreated},
		{name: "missing", status: http.StatusNotFound, body: `{}`, want: models.RenditionNotCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, nodes+"n1/renditions/pdf", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			got, err := client.RenditionStatus(context.Background(), "n1", models.RenditionPDF)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCreateRenditionConflictIsIgnored(t *testing.T) {
	calls := 0
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, nodes+"n1/renditions", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "pdf", body["id"])
		w.WriteHeader(http.StatusConflict)
	})

	require.NoError(t, client.CreateRendition(context.Background(), "n1", models.RenditionPDF))
	require.Equal(t, 1, calls)
}

func TestContentAndRenditionContent(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case nodes + "n1/content":
			require.Equal(t, "true", r.URL.Query().Get("attachment"))
			_, _ = io.WriteString(w, "native")
		case nodes + "n1/renditions/pdf/content":
			require.Equal(t, "false", r.URL.Query().Get("attachment"))
			_, _ = io.WriteString(w, "%PDF")
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	native, err := client.Content(context.Background(), "n1")
	require.NoError(t, err)
	require.Equal(t, []byte("native"), native)

	pdf, err := client.RenditionContent(context.Background(), "n1", models.RenditionPDF)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF"), pdf)
}

func TestPrimaryParentAndTags(t *testing.T) {
	var tags []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case nodes + "n1/parents":
			require.Equal(t, "(isPrimary=true)", r.URL.Query().Get("where"))
			_, _ = io.WriteString(w, `{"list":{"entries":[{"entry":{"id":"folder"}}]}}`)
		case nodes + "n1/tags":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			tags = append(tags, body["tag"])
			w.WriteHeader(http.StatusCreated)
		}
	})

	parent, err := client.PrimaryParent(context.Background(), "n1")
	require.NoError(t, err)
	require.Equal(t, "folder", parent)

	require.NoError(t, client.CreateTag(context.Background(), "n1", "Invoice"))
	require.Equal(t, []string{"Invoice"}, tags)
}
