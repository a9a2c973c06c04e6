package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/logging"
)

const defaultTimeout = 30 * time.Second

// HTTP posts approved actions to an external effector endpoint. The
// endpoint owns the actual side effects (sending mail, posting, paying);
// this process only ever hands it an already approved action.
type HTTP struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// NewHTTP builds an executor against the given endpoint URL.
func NewHTTP(endpoint string) *HTTP {
	return &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
		log:      logging.Component("executor.http"),
	}
}

type actionPayload struct {
	Type       string            `json:"type"`
	ItemID     string            `json:"item_id"`
	Title      string            `json:"title,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type actionResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Execute posts the action and maps the endpoint's answer onto a Result.
// Transport failures and non-2xx answers are errors so the orchestrator's
// retry accounting sees them.
func (h *HTTP) Execute(ctx context.Context, a Action) (Result, error) {
	body, err := json.Marshal(actionPayload{
		Type:       a.Type,
		ItemID:     a.ItemID,
		Title:      a.Title,
		Parameters: a.Parameters,
	})
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("execute %s: %w", a.ItemID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("execute %s: %w", a.ItemID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Result{Status: StatusFailed}, fmt.Errorf("execute %s: %w", a.ItemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{Status: StatusFailed}, fmt.Errorf("execute %s: endpoint returned %d: %s", a.ItemID, resp.StatusCode, snippet)
	}

	var ar actionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		// A 2xx with an unreadable body still counts as done.
		h.log.Warn().Err(err).Str("item", a.ItemID).Msg("unparseable effector response")
		return Result{Status: StatusSuccess}, nil
	}
	if ar.Status == "" {
		ar.Status = StatusSuccess
	}
	return Result{Status: ar.Status, Detail: ar.Detail}, nil
}
