package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/models"
)

const (
	coreAPI   = "/alfresco/api/-default-/public/alfresco/versions/1"
	searchAPI = "/alfresco/api/-default-/public/search/versions/1"
)

// Client talks to the content repository REST API.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
	log      *slog.Logger
}

// Config configures the repository client.
type Config struct {
	BaseURL  string
	User     string
	Password string
	Timeout  time.Duration
}

// New instantiates the repository client.
func New(cfg Config, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		user:     cfg.User,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

// BuildQuery returns the AFTS query selecting documents under root that
// do not carry targetField yet.
func BuildQuery(root, targetField string) string {
	return fmt.Sprintf("PATH:\"%s//*\" AND NOT EXISTS:\"%s\"", root, targetField)
}

type searchRequest struct {
	Query struct {
		Language string `json:"language"`
		Query    string `json:"query"`
	} `json:"query"`
	Sort []struct {
		Type      string `json:"type"`
		Field     string `json:"field"`
		Ascending bool   `json:"ascending"`
	} `json:"sort"`
	Paging struct {
		MaxItems  int `json:"maxItems"`
		SkipCount int `json:"skipCount"`
	} `json:"paging"`
}

type searchResponse struct {
	List struct {
		Pagination struct {
			TotalItems   int64 `json:"totalItems"`
			HasMoreItems bool  `json:"hasMoreItems"`
		} `json:"pagination"`
		Entries []struct {
			Entry struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"entry"`
		} `json:"entries"`
	} `json:"list"`
}

// Search runs the unprocessed-documents query sorted by id ascending.
func (c *Client) Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error) {
	var req searchRequest
	req.Query.Language = "afts"
	req.Query.Query = BuildQuery(q.RootPath, q.TargetField)
	req.Sort = append(req.Sort, struct {
		Type      string `json:"type"`
		Field     string `json:"field"`
		Ascending bool   `json:"ascending"`
	}{Type: "FIELD", Field: "id", Ascending: true})
	req.Paging.MaxItems = q.MaxItems
	req.Paging.SkipCount = q.SkipCount

	var resp searchResponse
	if err := c.doJSON(ctx, http.MethodPost, searchAPI+"/search", req, &resp, "search"); err != nil {
		return models.SearchPage{}, err
	}

	page := models.SearchPage{
		Entries:      make([]models.SearchEntry, 0, len(resp.List.Entries)),
		TotalItems:   resp.List.Pagination.TotalItems,
		HasMoreItems: resp.List.Pagination.HasMoreItems,
	}
	for _, e := range resp.List.Entries {
		page.Entries = append(page.Entries, models.SearchEntry{ID: e.Entry.ID, Name: e.Entry.Name})
	}
	return page, nil
}

type nodeEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	NodeType    string         `json:"nodeType"`
	ParentID    string         `json:"parentId"`
	AspectNames []string       `json:"aspectNames"`
	Properties  map[string]any `json:"properties"`
}

// GetNode reads a node with its aspects and properties.
func (c *Client) GetNode(ctx context.Context, id string) (models.Document, error) {
	var resp struct {
		Entry nodeEntry `json:"entry"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.nodePath(id), nil, &resp, "get node"); err != nil {
		return models.Document{}, err
	}
	e := resp.Entry
	return models.Document{
		ID:         e.ID,
		Name:       e.Name,
		NodeType:   e.NodeType,
		Aspects:    e.AspectNames,
		Properties: e.Properties,
		ParentID:   e.ParentID,
	}, nil
}

// UpdateNode submits properties and aspects in a single call.
func (c *Client) UpdateNode(ctx context.Context, id string, update models.NodeUpdate) error {
	return c.doJSON(ctx, http.MethodPut, c.nodePath(id), update, nil, "update node")
}

// PrimaryParent returns the id of the node's primary parent.
func (c *Client) PrimaryParent(ctx context.Context, id string) (string, error) {
	q := url.Values{}
	q.Set("where", "(isPrimary=true)")
	q.Set("skipCount", "0")
	q.Set("maxItems", "1")

	var resp struct {
		List struct {
			Entries []struct {
				Entry struct {
					ID string `json:"id"`
				} `json:"entry"`
			} `json:"entries"`
		} `json:"list"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.nodePath(id)+"/parents?"+q.Encode(), nil, &resp, "list parents"); err != nil {
		return "", err
	}
	if len(resp.List.Entries) == 0 {
		return "", fmt.Errorf("primary parent of %s: %w", id, models.ErrNotFound)
	}
	return resp.List.Entries[0].Entry.ID, nil
}

// Content downloads the node's binary content.
func (c *Client) Content(ctx context.Context, id string) ([]byte, error) {
	return c.doBytes(ctx, c.nodePath(id)+"/content?attachment=true", "get content")
}

// RenditionStatus reports whether the rendition exists. A missing rendition
// definition is reported as not created.
func (c *Client) RenditionStatus(ctx context.Context, id, rendition string) (models.RenditionStatus, error) {
	var resp struct {
		Entry struct {
			Status string `json:"status"`
		} `json:"entry"`
	}
	err := c.doJSON(ctx, http.MethodGet, c.renditionPath(id, rendition), nil, &resp, "get rendition")
	if err != nil {
		if isNotFound(err) {
			return models.RenditionNotCreated, nil
		}
		return "", err
	}
	if resp.Entry.Status == string(models.RenditionCreated) {
		return models.RenditionCreated, nil
	}
	return models.RenditionNotCreated, nil
}

// RenditionContent downloads a created rendition.
func (c *Client) RenditionContent(ctx context.Context, id, rendition string) ([]byte, error) {
	return c.doBytes(ctx, c.renditionPath(id, rendition)+"/content?attachment=false", "get rendition content")
}

// CreateRendition asks the repository to generate a rendition asynchronously.
// A rendition that is already being generated is not an error.
func (c *Client) CreateRendition(ctx context.Context, id, rendition string) error {
	body := map[string]string{"id": rendition}
	err := c.doJSON(ctx, http.MethodPost, c.nodePath(id)+"/renditions", body, nil, "create rendition")
	if isStatus(err, http.StatusConflict) {
		c.log.Debug("rendition already requested", slog.String("id", id), slog.String("rendition", rendition))
		return nil
	}
	return err
}

// CreateTag attaches a tag to the node.
func (c *Client) CreateTag(ctx context.Context, id, tag string) error {
	body := map[string]string{"tag": tag}
	return c.doJSON(ctx, http.MethodPost, c.nodePath(id)+"/tags", body, nil, "create tag")
}

// Ping checks that the repository answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doBytes(ctx, "/alfresco/api/discovery", "ping repository")
	return err
}

func (c *Client) nodePath(id string) string {
	return coreAPI + "/nodes/" + url.PathEscape(id)
}

func (c *Client) renditionPath(id, rendition string) string {
	return c.nodePath(id) + "/renditions/" + url.PathEscape(rendition)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, op string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if err := checkStatus(res, op); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) doBytes(ctx context.Context, path, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.password)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if err := checkStatus(res, op); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return data, nil
}

func checkStatus(res *http.Response, op string) error {
	if res.StatusCode < http.StatusBadRequest {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	statusErr := &models.StatusError{Op: op, Status: res.StatusCode, Body: strings.TrimSpace(string(data))}
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", statusErr, models.ErrNotFound)
	}
	return statusErr
}
