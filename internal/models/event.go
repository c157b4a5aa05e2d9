package models

import "slices"

// EventKind distinguishes repository change notifications.
type EventKind string

const (
	EventNodeCreated EventKind = "org.alfresco.event.node.Created"
	EventNodeUpdated EventKind = "org.alfresco.event.node.Updated"
)

// ChangeEvent is the subset of a repository event needed to evaluate filters
// and run actions.
type ChangeEvent struct {
	ID               string
	Kind             EventKind
	ResourceID       string
	Name             string
	NodeType         string
	Aspects          []string
	Properties       map[string]any
	PrimaryHierarchy []string

	ContentChanged    bool
	AddedAspects      []string
	ChangedProperties []string
}

// Document converts the event resource into the Document an action expects.
func (e ChangeEvent) Document() Document {
	doc := Document{
		ID:         e.ResourceID,
		Name:       e.Name,
		NodeType:   e.NodeType,
		Aspects:    e.Aspects,
		Properties: e.Properties,
	}
	if len(e.PrimaryHierarchy) > 0 {
		doc.ParentID = e.PrimaryHierarchy[0]
	}
	return doc
}

// HasAspect reports whether the resource carries the aspect after the change.
func (e ChangeEvent) HasAspect(aspect string) bool {
	return slices.Contains(e.Aspects, aspect)
}

// AspectWasAdded reports whether the aspect was attached by this change.
func (e ChangeEvent) AspectWasAdded(aspect string) bool {
	return slices.Contains(e.AddedAspects, aspect)
}

// PropertyWasChanged reports whether the property value changed.
func (e ChangeEvent) PropertyWasChanged(name string) bool {
	return slices.Contains(e.ChangedProperties, name)
}
