package enrich_test

import (
	"context"
	"sync"

	"github.com/DeafMist/doc-enricher/internal/models"
)

type stubRepo struct {
	mu sync.Mutex

	nodes    map[string]models.Document
	parents  map[string]string
	content  map[string][]byte
	statuses []models.RenditionStatus // consumed one per status call, last one repeats
	pdf      []byte

	contentErr error
	updateErr  error

	statusCalls    int
	createCalls    int
	renditionReads int
	updates        []models.NodeUpdate
	tags           []string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		nodes:   map[string]models.Document{},
		parents: map[string]string{},
		content: map[string][]byte{},
		pdf:     []byte("%PDF"),
	}
}

func (s *stubRepo) GetNode(_ context.Context, id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.nodes[id]
	if !ok {
		return models.Document{}, models.ErrNotFound
	}
	return doc, nil
}

func (s *stubRepo) UpdateNode(_ context.Context, _ string, update models.NodeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, update)
	return nil
}

func (s *stubRepo) CreateTag(_ context.Context, _ string, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tag)
	return nil
}

func (s *stubRepo) Content(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contentErr != nil {
		return nil, s.contentErr
	}
	return s.content[id], nil
}

func (s *stubRepo) PrimaryParent(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.parents[id]
	if !ok {
		return "", models.ErrNotFound
	}
	return parent, nil
}

func (s *stubRepo) RenditionStatus(_ context.Context, _, _ string) (models.RenditionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if len(s.statuses) == 0 {
		return models.RenditionNotCreated, nil
	}
	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	return status, nil
}

func (s *stubRepo) RenditionContent(_ context.Context, _, _ string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renditionReads++
	return s.pdf, nil
}

func (s *stubRepo) CreateRendition(_ context.Context, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	return nil
}

type stubAI struct {
	summary     models.Summary
	term        models.Term
	description models.Description
	answer      models.Answer
	err         error

	files     []models.File
	termLists []string
	questions []string
}

func (s *stubAI) Summarize(_ context.Context, file models.File) (models.Summary, error) {
	s.files = append(s.files, file)
	return s.summary, s.err
}

func (s *stubAI) Classify(_ context.Context, file models.File, termList string) (models.Term, error) {
	s.files = append(s.files, file)
	s.termLists = append(s.termLists, termList)
	return s.term, s.err
}

func (s *stubAI) Describe(_ context.Context, file models.File) (models.Description, error) {
	s.files = append(s.files, file)
	return s.description, s.err
}

func (s *stubAI) Prompt(_ context.Context, file models.File, question string) (models.Answer, error) {
	s.files = append(s.files, file)
	s.questions = append(s.questions, question)
	return s.answer, s.err
}
