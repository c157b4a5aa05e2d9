package models

// Result field names. Field mappings in configuration are keyed by these.
const (
	FieldSummary     = "summary"
	FieldTags        = "tags"
	FieldModel       = "model"
	FieldTerm        = "term"
	FieldDescription = "description"
	FieldAnswer      = "answer"
)

// Field is a single named value carried by an EnrichmentResult.
// Value is either a string or a []string.
type Field struct {
	Name  string
	Value any
}

// EnrichmentResult is the structured answer produced by the AI service.
// The set of implementations is closed: Summary, Term, Description, Answer.
type EnrichmentResult interface {
	Fields() []Field
	ModelID() string
	enrichmentResult()
}

// Summary is the result of summarizing a document.
type Summary struct {
	Text  string
	Tags  []string
	Model string
}

func (s Summary) Fields() []Field {
	return []Field{
		{Name: FieldSummary, Value: s.Text},
		{Name: FieldTags, Value: s.Tags},
		{Name: FieldModel, Value: s.Model},
	}
}

func (s Summary) ModelID() string { return s.Model }
func (Summary) enrichmentResult() {}

// Term is a classification label picked from a term list.
type Term struct {
	Value string
	Model string
}

func (t Term) Fields() []Field {
	return []Field{
		{Name: FieldTerm, Value: t.Value},
		{Name: FieldModel, Value: t.Model},
	}
}

func (t Term) ModelID() string { return t.Model }
func (Term) enrichmentResult() {}

// Description is the text describing a picture.
type Description struct {
	Text  string
	Model string
}

func (d Description) Fields() []Field {
	return []Field{
		{Name: FieldDescription, Value: d.Text},
		{Name: FieldModel, Value: d.Model},
	}
}

func (d Description) ModelID() string { return d.Model }
func (Description) enrichmentResult() {}

// Answer is the response to a free-text question about a document.
type Answer struct {
	Text  string
	Model string
}

func (a Answer) Fields() []Field {
	return []Field{
		{Name: FieldAnswer, Value: a.Text},
		{Name: FieldModel, Value: a.Model},
	}
}

func (a Answer) ModelID() string { return a.Model }
func (Answer) enrichmentResult() {}
