package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/dispatch"
	"github.com/DeafMist/doc-enricher/internal/enrich"
	"github.com/DeafMist/doc-enricher/internal/filter"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/models"
)

type stubAction struct {
	kind string
	err  error
	docs []models.Document
}

func (a *stubAction) Kind() string        { return a.kind }
func (a *stubAction) TargetField() string { return "genai:" + a.kind }

func (a *stubAction) Execute(_ context.Context, doc models.Document) (bool, error) {
	a.docs = append(a.docs, doc)
	return a.err == nil, a.err
}

type stubNodes map[string]models.Document

func (s stubNodes) GetNode(_ context.Context, id string) (models.Document, error) {
	doc, ok := s[id]
	if !ok {
		return models.Document{}, models.ErrNotFound
	}
	return doc, nil
}

func mappings() config.Mappings {
	return config.Mappings{
		Summary:  config.ActionMapping{Aspect: "genai:summarizable"},
		Classify: config.ActionMapping{Aspect: "genai:classifiable"},
		Describe: config.ActionMapping{Aspect: "genai:descriptable"},
		Prompt:   config.ActionMapping{Aspect: "genai:promptable", QuestionProperty: "genai:question"},
	}
}

func allActions() (map[string]enrich.Action, map[string]*stubAction) {
	stubs := map[string]*stubAction{}
	actions := map[string]enrich.Action{}
	for _, kind := range []string{config.ActionSummary, config.ActionClassify, config.ActionDescribe, config.ActionPrompt} {
		stubs[kind] = &stubAction{kind: kind}
		actions[kind] = stubs[kind]
	}
	return actions, stubs
}

func TestDispatchRunsEveryMatchingHandlerOnce(t *testing.T) {
	var calls []string
	handler := func(name string, err error) dispatch.Handler {
		return func(context.Context, models.ChangeEvent) (bool, error) {
			calls = append(calls, name)
			return err == nil, err
		}
	}
	d := dispatch.New([]dispatch.Registration{
		{Name: "a", Kind: models.EventNodeCreated, Filter: filter.HasAspect("x"), Handler: handler("a", errors.New("boom"))},
		{Name: "b", Kind: models.EventNodeCreated, Filter: filter.HasAspect("x"), Handler: handler("b", nil)},
		{Name: "c", Kind: models.EventNodeUpdated, Filter: filter.HasAspect("x"), Handler: handler("c", nil)},
		{Name: "d", Kind: models.EventNodeCreated, Filter: filter.HasAspect("y"), Handler: handler("d", nil)},
	}, logger.Discard())

	err := d.Dispatch(context.Background(), models.ChangeEvent{Kind: models.EventNodeCreated, Aspects: []string{"x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "a: boom")
	require.Equal(t, []string{"a", "b"}, calls)
}

func TestDefaultRegistrations(t *testing.T) {
	actions, _ := allActions()
	regs := dispatch.DefaultRegistrations(mappings(), actions, stubNodes{}, nil)

	d := dispatch.New(regs, logger.Discard())
	require.Equal(t, []string{
		"summary-created", "summary-updated",
		"classify-created", "classify-updated",
		"describe-created", "describe-updated",
		"summary-rendition-created", "prompt-updated",
	}, d.Registrations())
}

func TestDefaultRegistrationsHonourEnabledActions(t *testing.T) {
	actions, _ := allActions()
	delete(actions, config.ActionSummary)
	delete(actions, config.ActionDescribe)

	d := dispatch.New(dispatch.DefaultRegistrations(mappings(), actions, stubNodes{}, nil), logger.Discard())
	require.Equal(t, []string{"classify-created", "classify-updated", "prompt-updated"}, d.Registrations())
}

func TestCreatedContentTriggersAction(t *testing.T) {
	actions, stubs := allActions()
	d := dispatch.New(dispatch.DefaultRegistrations(mappings(), actions, stubNodes{}, nil), logger.Discard())

	err := d.Dispatch(context.Background(), models.ChangeEvent{
		Kind:             models.EventNodeCreated,
		ResourceID:       "n1",
		Name:             "a.pdf",
		NodeType:         models.NodeTypeContent,
		Aspects:          []string{"genai:classifiable"},
		PrimaryHierarchy: []string{"folder"},
	})
	require.NoError(t, err)
	require.Len(t, stubs[config.ActionClassify].docs, 1)
	require.Equal(t, "folder", stubs[config.ActionClassify].docs[0].ParentID)
	require.Empty(t, stubs[config.ActionSummary].docs)
}

func TestUpdatedAspectAddedTriggersAction(t *testing.T) {
	actions, stubs := allActions()
	d := dispatch.New(dispatch.DefaultRegistrations(mappings(), actions, stubNodes{}, nil), logger.Discard())

	err := d.Dispatch(context.Background(), models.ChangeEvent{
		Kind:         models.EventNodeUpdated,
		ResourceID:   "n1",
		NodeType:     models.NodeTypeContent,
		Aspects:      []string{"genai:summarizable"},
		AddedAspects: []string{"genai:summarizable"},
	})
	require.NoError(t, err)
	require.Len(t, stubs[config.ActionSummary].docs, 1)
}

func TestQuestionChangeTriggersPrompt(t *testing.T) {
	actions, stubs := allActions()
	d := dispatch.New(dispatch.DefaultRegistrations(mappings(), actions, stubNodes{}, nil), logger.Discard())

	err := d.Dispatch(context.Background(), models.ChangeEvent{
		Kind:              models.EventNodeUpdated,
		ResourceID:        "n1",
		Properties:        map[string]any{"genai:question": "Why?"},
		ChangedProperties: []string{"genai:question"},
	})
	require.NoError(t, err)
	require.Len(t, stubs[config.ActionPrompt].docs, 1)
	require.Equal(t, "Why?", stubs[config.ActionPrompt].docs[0].Properties["genai:question"])
}

func TestRenditionCreatedSummarizesParent(t *testing.T) {
	nodes := stubNodes{
		"doc":   {ID: "doc", Name: "report.docx", Aspects: []string{"genai:summarizable"}},
		"other": {ID: "other", Name: "other.docx"},
	}
	tests := []struct {
		name      string
		rendition string
		parent    string
		want      []string
	}{
		{name: "pdf of summarizable document", rendition: "pdf", parent: "doc", want: []string{"doc"}},
		{name: "pdf of unrelated document", rendition: "pdf", parent: "other"},
		{name: "thumbnail rendition", rendition: "doclib", parent: "doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions, stubs := allActions()
			d := dispatch.New(dispatch.DefaultRegistrations(mappings(), actions, nodes, nil), logger.Discard())

			err := d.Dispatch(context.Background(), models.ChangeEvent{
				Kind:             models.EventNodeCreated,
				ResourceID:       "rendition-id",
				Name:             tt.rendition,
				NodeType:         models.NodeTypeRendition,
				PrimaryHierarchy: []string{tt.parent},
			})
			require.NoError(t, err)

			var got []string
			for _, doc := range stubs[config.ActionSummary].docs {
				got = append(got, doc.ID)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRenditionParentMissingIsError(t *testing.T) {
	actions, _ := allActions()
	d := dispatch.New(dispatch.DefaultRegistrations(mappings(), actions, stubNodes{}, nil), logger.Discard())

	err := d.Dispatch(context.Background(), models.ChangeEvent{
		Kind:             models.EventNodeCreated,
		Name:             "pdf",
		NodeType:         models.NodeTypeRendition,
		PrimaryHierarchy: []string{"gone"},
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}
