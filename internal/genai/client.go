package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
	"github.com/DeafMist/doc-enricher/internal/processing"
)

const connectTimeout = 30 * time.Second

// Client calls the generative AI service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// Config configures the AI service client.
type Config struct {
	BaseURL string
	// ReadTimeout bounds a whole request; model inference is slow.
	ReadTimeout time.Duration
	// RateLimit is the number of requests per second, 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// New instantiates the AI service client.
func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.ReadTimeout
	transport.TLSHandshakeTimeout = connectTimeout

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.ReadTimeout, Transport: transport},
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

// Summarize returns a summary, comma separated tags and the model used.
func (c *Client) Summarize(ctx context.Context, file models.File) (models.Summary, error) {
	var resp struct {
		Summary *string `json:"summary"`
		Tags    *string `json:"tags"`
		Model   *string `json:"model"`
	}
	if err := c.post(ctx, "/summary", nil, "file", withDefaultType(file, "application/pdf"), &resp); err != nil {
		return models.Summary{}, err
	}
	if err := require("/summary", map[string]*string{"summary": resp.Summary, "tags": resp.Tags, "model": resp.Model}); err != nil {
		return models.Summary{}, err
	}
	return models.Summary{
		Text:  strings.TrimSpace(*resp.Summary),
		Tags:  processing.SplitTags(*resp.Tags),
		Model: strings.TrimSpace(*resp.Model),
	}, nil
}

// Classify picks one term of termList for the document.
func (c *Client) Classify(ctx context.Context, file models.File, termList string) (models.Term, error) {
	q := url.Values{}
	q.Set("termList", `"`+termList+`"`)

	var resp struct {
		Term  *string `json:"term"`
		Model *string `json:"model"`
	}
	if err := c.post(ctx, "/classify", q, "file", withDefaultType(file, "application/pdf"), &resp); err != nil {
		return models.Term{}, err
	}
	if err := require("/classify", map[string]*string{"term": resp.Term, "model": resp.Model}); err != nil {
		return models.Term{}, err
	}
	return models.Term{
		Value: strings.TrimSpace(*resp.Term),
		Model: strings.TrimSpace(*resp.Model),
	}, nil
}

// Describe returns a description of a picture.
func (c *Client) Describe(ctx context.Context, file models.File) (models.Description, error) {
	var resp struct {
		Description *string `json:"description"`
		Model       *string `json:"model"`
	}
	if err := c.post(ctx, "/describe", nil, "image", withDefaultType(file, "application/octet-stream"), &resp); err != nil {
		return models.Description{}, err
	}
	if err := require("/describe", map[string]*string{"description": resp.Description, "model": resp.Model}); err != nil {
		return models.Description{}, err
	}
	return models.Description{
		Text:  strings.TrimSpace(*resp.Description),
		Model: strings.TrimSpace(*resp.Model),
	}, nil
}

// Prompt answers a question about the document.
func (c *Client) Prompt(ctx context.Context, file models.File, question string) (models.Answer, error) {
	q := url.Values{}
	q.Set("prompt", question)

	var resp struct {
		Answer *string `json:"answer"`
		Model  *string `json:"model"`
	}
	if err := c.post(ctx, "/prompt", q, "file", withDefaultType(file, "application/pdf"), &resp); err != nil {
		return models.Answer{}, err
	}
	if err := require("/prompt", map[string]*string{"answer": resp.Answer, "model": resp.Model}); err != nil {
		return models.Answer{}, err
	}
	return models.Answer{
		Text:  strings.TrimSpace(*resp.Answer),
		Model: strings.TrimSpace(*resp.Model),
	}, nil
}

func (c *Client) post(ctx context.Context, endpoint string, query url.Values, part string, file models.File, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", endpoint, err)
	}

	body, contentType, err := multipartBody(part, file)
	if err != nil {
		return fmt.Errorf("%s: build body: %w", endpoint, err)
	}

	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	metrics.GenAIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenAIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer res.Body.Close()
	metrics.GenAIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(res.StatusCode)).Inc()

	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &models.StatusError{Op: endpoint, Status: res.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", endpoint, models.ErrMalformedResponse, err)
	}

	c.log.Debug("genai request completed",
		slog.String("endpoint", endpoint),
		slog.String("file", file.Name),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func multipartBody(part string, file models.File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := file.Name
	if name == "" {
		name = "document"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, part, name))
	h.Set("Content-Type", file.ContentType)

	fw, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func withDefaultType(file models.File, contentType string) models.File {
	if file.ContentType == "" {
		file.ContentType = contentType
	}
	return file
}

// require reports the fields the service left out of its response.
func require(endpoint string, fields map[string]*string) error {
	var missing []string
	for name, v := range fields {
		if v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%s: missing %s: %w", endpoint, strings.Join(missing, ", "), models.ErrMalformedResponse)
}
