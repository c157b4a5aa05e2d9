package models

import "slices"

// Content model names used by the repository.
const (
	NodeTypeContent   = "cm:content"
	NodeTypeRendition = "cm:thumbnail"

	// RenditionPDF is the rendition id every action relies on.
	RenditionPDF = "pdf"
)

// Document is the repository node an action operates on.
type Document struct {
	ID         string
	Name       string
	NodeType   string
	Aspects    []string
	Properties map[string]any
	ParentID   string
}

// HasAspect reports whether the aspect is applied to the document.
func (d Document) HasAspect(aspect string) bool {
	return slices.Contains(d.Aspects, aspect)
}

// RenditionStatus is the lifecycle state of a derived rendering.
// Pending states reported by the repository collapse to RenditionNotCreated.
type RenditionStatus string

const (
	RenditionNotCreated RenditionStatus = "NOT_CREATED"
	RenditionCreated    RenditionStatus = "CREATED"
)

// File is a named payload sent to the AI service.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// SearchQuery selects documents under a root folder lacking a target field.
type SearchQuery struct {
	RootPath    string
	TargetField string
	MaxItems    int
	SkipCount   int
}

// SearchEntry is one row of a search response.
type SearchEntry struct {
	ID   string
	Name string
}

// SearchPage is a single page of search results.
type SearchPage struct {
	Entries      []SearchEntry
	TotalItems   int64
	HasMoreItems bool
}

// NodeUpdate is the body of a single node update call. Properties and
// aspects are submitted together.
type NodeUpdate struct {
	Properties  map[string]any `json:"properties,omitempty"`
	AspectNames []string       `json:"aspectNames,omitempty"`
}
