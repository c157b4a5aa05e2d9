package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DeafMist/doc-enricher/internal/models"
)

// TagSentinel as a target property means "create repository tags" instead of
// writing a property.
const TagSentinel = "TAG"

// Action kinds accepted by LISTENER_ACTIONS and the API. APPLIER_ACTION takes
// the batch subset, see IsBatchAction.
const (
	ActionSummary  = "summary"
	ActionClassify = "classify"
	ActionDescribe = "describe"
	ActionPrompt   = "prompt"
)

// Search backends for the applier.
const (
	SearchRepository    = "repository"
	SearchElasticsearch = "elasticsearch"
)

// ActionMapping describes where one action writes its results.
type ActionMapping struct {
	Aspect           string            `yaml:"aspect"`
	Fields           map[string]string `yaml:"fields"`
	TermsProperty    string            `yaml:"terms_property,omitempty"`
	QuestionProperty string            `yaml:"question_property,omitempty"`
}

// Mappings groups the per-action field mappings.
type Mappings struct {
	Summary  ActionMapping `yaml:"summary"`
	Classify ActionMapping `yaml:"classify"`
	Describe ActionMapping `yaml:"describe"`
	Prompt   ActionMapping `yaml:"prompt"`
}

// Common contains repository, AI service and mapping settings shared by every binary.
type Common struct {
	RepositoryURL        string
	RepositoryUser       string
	RepositoryPassword   string
	RepositoryTimeout    time.Duration
	GenAIURL             string
	GenAITimeout         time.Duration
	GenAIRateLimit       float64
	GenAIRateBurst       int
	RenditionMaxAttempts int
	RenditionRetryDelay  time.Duration
	Mappings             Mappings
}

// Applier holds configuration for the batch poller.
type Applier struct {
	Common
	Action             string
	RootFolder         string
	PageSize           int
	Workers            int
	MaxIterations      int
	Interval           time.Duration
	SearchBackend      string
	ElasticsearchAddr  string
	ElasticsearchIndex string
	MetricsBindAddr    string
}

// Listener holds configuration for the Kafka event listener.
type Listener struct {
	Common
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaConsumer   string
	Actions         []string
	MetricsBindAddr string
}

// API describes the on-demand enrichment HTTP server.
type API struct {
	Common
	BindAddr string
}

// LoadApplier builds an Applier config from environment variables.
func LoadApplier() (*Applier, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Applier{
		Common:             *common,
		Action:             strings.ToLower(getEnv("APPLIER_ACTION", ActionSummary)),
		RootFolder:         getEnv("APPLIER_ROOT_FOLDER", "/app:company_home/st:sites"),
		PageSize:           getInt("APPLIER_PAGE_SIZE", 10),
		Workers:            getInt("APPLIER_WORKERS", 0),
		MaxIterations:      getInt("APPLIER_MAX_ITERATIONS", 0),
		Interval:           getDuration("APPLIER_INTERVAL", "0s"),
		SearchBackend:      strings.ToLower(getEnv("SEARCH_BACKEND", SearchRepository)),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "alfresco"),
		MetricsBindAddr:    getEnv("METRICS_BIND_ADDR", "0.0.0.0:9090"),
	}

	if !IsBatchAction(c.Action) {
		return nil, fmt.Errorf("APPLIER_ACTION %q: %w", c.Action, models.ErrUnsupportedAction)
	}
	if c.PageSize <= 0 {
		return nil, fmt.Errorf("APPLIER_PAGE_SIZE must be positive")
	}
	if c.Workers < 0 {
		return nil, fmt.Errorf("APPLIER_WORKERS cannot be negative")
	}
	if c.Workers == 0 {
		c.Workers = c.PageSize
	}
	if c.MaxIterations < 0 {
		return nil, fmt.Errorf("APPLIER_MAX_ITERATIONS cannot be negative")
	}
	if c.Interval < 0 {
		return nil, fmt.Errorf("APPLIER_INTERVAL cannot be negative")
	}
	if c.RootFolder == "" {
		return nil, fmt.Errorf("APPLIER_ROOT_FOLDER is required")
	}
	switch c.SearchBackend {
	case SearchRepository, SearchElasticsearch:
	default:
		return nil, fmt.Errorf("SEARCH_BACKEND must be %q or %q", SearchRepository, SearchElasticsearch)
	}

	return c, nil
}

// LoadListener builds a Listener config from environment variables.
func LoadListener() (*Listener, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Listener{
		Common:          *common,
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "alfresco.repo.event2"),
		KafkaConsumer:   getEnv("KAFKA_CONSUMER_GROUP", "ai-listener"),
		Actions:         splitAndTrim(strings.ToLower(getEnv("LISTENER_ACTIONS", "summary,classify,describe,prompt"))),
		MetricsBindAddr: getEnv("METRICS_BIND_ADDR", "0.0.0.0:9090"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if len(c.Actions) == 0 {
		return nil, fmt.Errorf("LISTENER_ACTIONS must contain at least one action")
	}
	for _, a := range c.Actions {
		if !IsAction(a) {
			return nil, fmt.Errorf("LISTENER_ACTIONS %q: %w", a, models.ErrUnsupportedAction)
		}
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	return &API{
		Common:   *common,
		BindAddr: getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
	}, nil
}

// IsAction reports whether name is a known action kind.
func IsAction(name string) bool {
	switch name {
	case ActionSummary, ActionClassify, ActionDescribe, ActionPrompt:
		return true
	}
	return false
}

// IsBatchAction reports whether the applier can run name. Describe and prompt
// only apply to a subset of the folder that the search query cannot select,
// so a batch run over them would never drain.
func IsBatchAction(name string) bool {
	return name == ActionSummary || name == ActionClassify
}

// For returns the mapping for an action kind.
func (m Mappings) For(action string) (ActionMapping, bool) {
	switch action {
	case ActionSummary:
		return m.Summary, true
	case ActionClassify:
		return m.Classify, true
	case ActionDescribe:
		return m.Describe, true
	case ActionPrompt:
		return m.Prompt, true
	}
	return ActionMapping{}, false
}

func loadCommon() (*Common, error) {
	c := &Common{
		RepositoryURL:        strings.TrimRight(getEnv("REPOSITORY_URL", "http://alfresco:8080"), "/"),
		RepositoryUser:       getEnv("REPOSITORY_USER", "admin"),
		RepositoryPassword:   getEnv("REPOSITORY_PASSWORD", "admin"),
		RepositoryTimeout:    getDuration("REPOSITORY_TIMEOUT", "30s"),
		GenAIURL:             strings.TrimRight(getEnv("GENAI_URL", "http://genai:8506"), "/"),
		GenAITimeout:         getDuration("GENAI_REQUEST_TIMEOUT", "300s"),
		GenAIRateLimit:       getFloat("GENAI_RATE_LIMIT", 0),
		GenAIRateBurst:       getInt("GENAI_RATE_BURST", 1),
		RenditionMaxAttempts: getInt("RENDITION_MAX_ATTEMPTS", 10),
		RenditionRetryDelay:  getDuration("RENDITION_RETRY_DELAY", "2s"),
		Mappings:             mappingsFromEnv(),
	}

	if path := getEnv("FIELD_MAPPING_FILE", ""); path != "" {
		if err := overlayMappings(path, &c.Mappings); err != nil {
			return nil, err
		}
	}

	if c.GenAIRateLimit < 0 {
		return nil, fmt.Errorf("GENAI_RATE_LIMIT cannot be negative")
	}
	if c.GenAIRateBurst <= 0 {
		return nil, fmt.Errorf("GENAI_RATE_BURST must be positive")
	}
	if c.RenditionMaxAttempts <= 0 {
		return nil, fmt.Errorf("RENDITION_MAX_ATTEMPTS must be positive")
	}
	if err := c.Mappings.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func mappingsFromEnv() Mappings {
	return Mappings{
		Summary: ActionMapping{
			Aspect: getEnv("SUMMARY_ASPECT", "genai:summarizable"),
			Fields: map[string]string{
				models.FieldSummary: getEnv("SUMMARY_SUMMARY_PROPERTY", "genai:summary"),
				models.FieldTags:    getEnv("SUMMARY_TAGS_PROPERTY", TagSentinel),
				models.FieldModel:   getEnv("SUMMARY_MODEL_PROPERTY", "genai:llmSummary"),
			},
		},
		Classify: ActionMapping{
			Aspect: getEnv("CLASSIFY_ASPECT", "genai:classifiable"),
			Fields: map[string]string{
				models.FieldTerm:  getEnv("CLASSIFY_TERM_PROPERTY", "genai:term"),
				models.FieldModel: getEnv("CLASSIFY_MODEL_PROPERTY", "genai:llmClassify"),
			},
			TermsProperty: getEnv("CLASSIFY_TERMS_PROPERTY", "genai:terms"),
		},
		Describe: ActionMapping{
			Aspect: getEnv("DESCRIBE_ASPECT", "genai:descriptable"),
			Fields: map[string]string{
				models.FieldDescription: getEnv("DESCRIBE_DESCRIPTION_PROPERTY", "genai:description"),
				models.FieldModel:       getEnv("DESCRIBE_MODEL_PROPERTY", "genai:llmDescription"),
			},
		},
		Prompt: ActionMapping{
			Aspect: getEnv("PROMPT_ASPECT", "genai:promptable"),
			Fields: map[string]string{
				models.FieldAnswer: getEnv("PROMPT_ANSWER_PROPERTY", "genai:answer"),
				models.FieldModel:  getEnv("PROMPT_MODEL_PROPERTY", "genai:llmAnswer"),
			},
			QuestionProperty: getEnv("PROMPT_QUESTION_PROPERTY", "genai:question"),
		},
	}
}

// overlayMappings merges a YAML mapping file over the environment values.
func overlayMappings(path string, m *Mappings) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read field mapping file %s: %w", path, err)
	}

	var file Mappings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse field mapping file %s: %w", path, err)
	}

	mergeMapping(&m.Summary, file.Summary)
	mergeMapping(&m.Classify, file.Classify)
	mergeMapping(&m.Describe, file.Describe)
	mergeMapping(&m.Prompt, file.Prompt)
	return nil
}

func mergeMapping(dst *ActionMapping, src ActionMapping) {
	if src.Aspect != "" {
		dst.Aspect = src.Aspect
	}
	if src.TermsProperty != "" {
		dst.TermsProperty = src.TermsProperty
	}
	if src.QuestionProperty != "" {
		dst.QuestionProperty = src.QuestionProperty
	}
	if dst.Fields == nil {
		dst.Fields = make(map[string]string, len(src.Fields))
	}
	for field, target := range src.Fields {
		dst.Fields[field] = target
	}
}

// primaryFields are the result fields whose target property marks a
// document as processed; they can never be materialized as tags.
var primaryFields = map[string]string{
	ActionSummary:  models.FieldSummary,
	ActionClassify: models.FieldTerm,
	ActionDescribe: models.FieldDescription,
	ActionPrompt:   models.FieldAnswer,
}

// PrimaryField returns the result field used as the action's target field.
func PrimaryField(action string) string {
	return primaryFields[action]
}

func (m Mappings) validate() error {
	var errs []error
	for action, field := range primaryFields {
		mapping, _ := m.For(action)
		if mapping.Aspect == "" {
			errs = append(errs, fmt.Errorf("%s: aspect is required", action))
		}
		target := mapping.Fields[field]
		if target == "" || target == TagSentinel {
			errs = append(errs, fmt.Errorf("%s: %s must map to a property", action, field))
		}
	}
	if m.Classify.TermsProperty == "" {
		errs = append(errs, errors.New("classify: terms property is required"))
	}
	if m.Prompt.QuestionProperty == "" {
		errs = append(errs, errors.New("prompt: question property is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
