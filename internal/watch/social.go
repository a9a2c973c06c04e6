package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/core/logging"
)

// FeedEvent is one inbound social event in the local feed file.
type FeedEvent struct {
	ID      string `json:"id"`
	Network string `json:"network"`
	Kind    string `json:"kind"` // message, mention, connection_request
	Author  string `json:"author"`
	Content string `json:"content"`
	Created string `json:"created,omitempty"`
}

// feedActionTypes maps an event kind to the declared action type of the
// item it produces. Unknown kinds fall through to social_post, which the
// approval policy gates.
var feedActionTypes = map[string]string{
	"message":            "social_message",
	"mention":            "social_post",
	"connection_request": "social_connection",
}

// SocialWatcher reads a JSON feed of social events. Identity is
// network-scoped on the provider event id.
type SocialWatcher struct {
	feedPath string
	log      zerolog.Logger
}

// NewSocialWatcher builds a watcher over the given feed file. A missing
// feed means no events, not an error.
func NewSocialWatcher(feedPath string) *SocialWatcher {
	return &SocialWatcher{
		feedPath: feedPath,
		log:      logging.Component("watch.social"),
	}
}

func (w *SocialWatcher) Name() string { return "social" }

// Poll reads the feed and returns one candidate per event.
func (w *SocialWatcher) Poll(ctx context.Context) ([]Candidate, error) {
	data, err := os.ReadFile(w.feedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("social feed: %w", err)
	}

	var events []FeedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("social feed: %w", err)
	}

	out := make([]Candidate, 0, len(events))
	for _, ev := range events {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ev.ID == "" || ev.Network == "" {
			w.log.Warn().Str("kind", ev.Kind).Msg("feed event missing id or network, skipping")
			continue
		}

		actionType, ok := feedActionTypes[ev.Kind]
		if !ok {
			actionType = "social_post"
		}

		out = append(out, Candidate{
			Key:      "social:" + ev.Network + ":" + ev.ID,
			Type:     actionType,
			Source:   item.SourceSocial,
			Priority: ClassifyPriority(ev.Content),
			Title:    fmt.Sprintf("%s %s from %s", ev.Network, ev.Kind, ev.Author),
			Body:     ev.Content,
			Metadata: map[string]string{
				"event_id": ev.ID,
				"network":  ev.Network,
				"kind":     ev.Kind,
				"author":   ev.Author,
				"created":  ev.Created,
			},
		})
	}
	return out, nil
}
