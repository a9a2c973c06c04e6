// Package watch defines the pluggable input watchers that detect new work
// and hand it to the orchestrator as candidate items. Watchers only detect;
// they never mutate item state.
package watch

import (
	"context"

	"github.com/hay-kot/steward/internal/core/item"
)

// Attachment is a payload file referenced by a candidate. The source path
// lives outside the vault; the orchestrator copies it in under Name.
type Attachment struct {
	SourcePath string
	Name       string
}

// Candidate is one detected unit of inbound work. Key is the watcher's
// stable identity for the underlying event; the store uses it to suppress
// duplicates across polls and restarts.
type Candidate struct {
	Key         string
	Type        string
	Source      item.Source
	Priority    item.Priority
	Title       string
	Body        string
	Metadata    map[string]string
	Attachments []Attachment
}

// Watcher is a single input source. Poll returns every currently visible
// candidate, including ones returned before; deduplication is the caller's
// job. A failing watcher must not poison the others, so errors are
// contained per watcher by the orchestrator.
type Watcher interface {
	Name() string
	Poll(ctx context.Context) ([]Candidate, error)
}
