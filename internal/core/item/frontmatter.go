package item

import (
	"fmt"
	"time"

	"github.com/hay-kot/steward/internal/core/docfile"
)

// SchemaVersion is the current work item document schema.
const SchemaVersion = 1

// header is the YAML frontmatter schema for a work item document.
// Field order here defines the serialized order.
type header struct {
	Schema      int               `yaml:"schema"`
	ID          string            `yaml:"id"`
	Type        string            `yaml:"type"`
	Source      string            `yaml:"source"`
	Priority    string            `yaml:"priority"`
	Status      string            `yaml:"status"`
	Created     time.Time         `yaml:"created"`
	Title       string            `yaml:"title,omitempty"`
	Meta        map[string]string `yaml:"meta,omitempty"`
	Attachments []string          `yaml:"attachments,omitempty"`
}

// Encode renders a work item as a vault document.
func Encode(w *WorkItem) ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	h := header{
		Schema:      SchemaVersion,
		ID:          w.ID,
		Type:        w.Type,
		Source:      string(w.Source),
		Priority:    string(w.Priority),
		Status:      string(w.State),
		Created:     w.Created.UTC(),
		Title:       w.Title,
		Meta:        w.Metadata,
		Attachments: w.Attachments,
	}
	return docfile.Render(h, w.Body)
}

// Decode parses a vault document into a work item, validating the header
// eagerly. Malformed documents are rejected, not guessed at.
func Decode(content []byte) (*WorkItem, error) {
	raw, body, err := docfile.Split(content)
	if err != nil {
		return nil, err
	}

	var h header
	if err := docfile.DecodeHeader(raw, &h); err != nil {
		return nil, err
	}
	if h.Schema != SchemaVersion {
		return nil, fmt.Errorf("work item: unsupported schema version %d", h.Schema)
	}

	w := &WorkItem{
		ID:          h.ID,
		Type:        h.Type,
		Source:      Source(h.Source),
		Priority:    Priority(h.Priority),
		State:       State(h.Status),
		Created:     h.Created,
		Title:       h.Title,
		Body:        string(body),
		Metadata:    h.Meta,
		Attachments: h.Attachments,
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}
