// Package events decodes repository change notifications.
package events

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/DeafMist/doc-enricher/internal/models"
)

type nodeResource struct {
	ID               string                     `json:"id"`
	Name             string                     `json:"name"`
	NodeType         string                     `json:"nodeType"`
	AspectNames      []string                   `json:"aspectNames"`
	Properties       map[string]json.RawMessage `json:"properties"`
	PrimaryHierarchy []string                   `json:"primaryHierarchy"`
	Content          json.RawMessage            `json:"content"`
}

type repoEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Resource       *nodeResource `json:"resource"`
		ResourceBefore *nodeResource `json:"resourceBefore"`
	} `json:"data"`
}

// Decode parses a repository event. The before snapshot only carries the
// attributes that changed, which is what the change flags are derived from.
func Decode(payload []byte) (models.ChangeEvent, error) {
	var raw repoEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("%w: %w", models.ErrInvalidEvent, err)
	}
	if raw.Type == "" {
		return models.ChangeEvent{}, fmt.Errorf("%w: missing type", models.ErrInvalidEvent)
	}
	after := raw.Data.Resource
	if after == nil || after.ID == "" {
		return models.ChangeEvent{}, fmt.Errorf("%w: missing resource id", models.ErrInvalidEvent)
	}

	props, err := decodeProperties(after.Properties)
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("%w: resource %s: %w", models.ErrInvalidEvent, after.ID, err)
	}

	ev := models.ChangeEvent{
		ID:               raw.ID,
		Kind:             models.EventKind(raw.Type),
		ResourceID:       after.ID,
		Name:             after.Name,
		NodeType:         after.NodeType,
		Aspects:          after.AspectNames,
		Properties:       props,
		PrimaryHierarchy: after.PrimaryHierarchy,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	if before := raw.Data.ResourceBefore; before != nil {
		ev.ContentChanged = present(before.Content)
		if before.AspectNames != nil {
			for _, aspect := range after.AspectNames {
				if !slices.Contains(before.AspectNames, aspect) {
					ev.AddedAspects = append(ev.AddedAspects, aspect)
				}
			}
		}
		for name := range before.Properties {
			ev.ChangedProperties = append(ev.ChangedProperties, name)
		}
		slices.Sort(ev.ChangedProperties)
	}
	return ev, nil
}

func decodeProperties(raw map[string]json.RawMessage) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
