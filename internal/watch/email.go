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

// SpoolMessage is one inbound email in the local spool file. Provider
// integrations deliver mail here; the watcher never talks to a mail server.
type SpoolMessage struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Importance string `json:"importance,omitempty"`
	Received   string `json:"received,omitempty"`
}

// EmailWatcher reads a JSON spool of inbound messages. Identity is the
// provider message id, so redelivery never creates a second item.
type EmailWatcher struct {
	spoolPath string
	log       zerolog.Logger
}

// NewEmailWatcher builds a watcher over the given spool file. The file is
// allowed to be absent; an empty mailbox is not an error.
func NewEmailWatcher(spoolPath string) *EmailWatcher {
	return &EmailWatcher{
		spoolPath: spoolPath,
		log:       logging.Component("watch.email"),
	}
}

func (w *EmailWatcher) Name() string { return "email" }

// Poll reads the spool and returns one candidate per message.
func (w *EmailWatcher) Poll(ctx context.Context) ([]Candidate, error) {
	data, err := os.ReadFile(w.spoolPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("email spool: %w", err)
	}

	var msgs []SpoolMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("email spool: %w", err)
	}

	out := make([]Candidate, 0, len(msgs))
	for _, m := range msgs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if m.ID == "" {
			w.log.Warn().Str("subject", m.Subject).Msg("spool message without id, skipping")
			continue
		}

		// A provider-native importance flag outranks keyword matching.
		prio := ClassifyPriority(m.Subject, m.Body)
		if m.Importance == "high" {
			prio = item.PriorityHigh
		}

		out = append(out, Candidate{
			Key:      "email:" + m.ID,
			Type:     "email",
			Source:   item.SourceEmail,
			Priority: prio,
			Title:    "Email: " + m.Subject,
			Body:     m.Body,
			Metadata: map[string]string{
				"message_id": m.ID,
				"from":       m.From,
				"subject":    m.Subject,
				"received":   m.Received,
			},
		})
	}
	return out, nil
}
