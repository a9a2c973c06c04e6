package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/core/logging"
	"github.com/hay-kot/steward/internal/core/plan"
)

// InvalidDoc records a document that failed validation and was excluded
// from processing. The file is left in place for manual inspection.
type InvalidDoc struct {
	Area string
	Name string
	Err  error
}

// Store is the sole writer of work item and plan state. Components never
// hold private copies that can drift; every read and mutation goes through
// the store, and every mutation is re-derivable from the vault on restart.
type Store struct {
	vault *Vault
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.Mutex
	seen    map[string]string // identity key -> item id
	flagged map[string]bool   // doc name -> already reported invalid
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the store's clock.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore opens the item store over a structurally verified vault,
// loading the persisted dedup index.
func NewStore(v *Vault, opts ...StoreOption) (*Store, error) {
	s := &Store{
		vault:   v,
		log:     logging.Component("store"),
		now:     time.Now,
		seen:    map[string]string{},
		flagged: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Vault returns the underlying vault.
func (s *Store) Vault() *Vault {
	return s.vault
}

// Seen reports whether a watcher identity key has already produced an item.
// Used for cross-restart deduplication.
func (s *Store) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// itemFile returns the document name for a work item id.
func itemFile(id string) string {
	return "ITEM_" + id + ".md"
}

// planFile returns the document name for an item's plan. One plan per item.
func planFile(itemID string) string {
	return "PLAN_" + itemID + ".md"
}

// CreateItem persists a new work item into Needs_Action and records its
// identity key. Creating the same key twice is an error naming the item
// that already owns the key; callers check Seen before ingesting.
func (s *Store) CreateItem(w *item.WorkItem, identityKey string) error {
	if err := w.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.seen[identityKey]; ok {
		return fmt.Errorf("item %s already ingested for key %s", existing, identityKey)
	}

	data, err := item.Encode(w)
	if err != nil {
		return err
	}
	if err := s.vault.WriteDoc(AreaNeedsAction, itemFile(w.ID), data); err != nil {
		return err
	}

	s.seen[identityKey] = w.ID
	return s.saveIndexLocked()
}

// Items loads every work item from Needs_Action whose state matches one of
// the given states (all states when none given), sorted priority-major and
// detection-time-minor. Invalid documents are excluded and reported once.
func (s *Store) Items(states ...item.State) ([]*item.WorkItem, []InvalidDoc, error) {
	names, err := s.vault.ListDocs(AreaNeedsAction)
	if err != nil {
		return nil, nil, err
	}

	want := map[item.State]bool{}
	for _, st := range states {
		want[st] = true
	}

	var (
		items   []*item.WorkItem
		invalid []InvalidDoc
	)
	for _, name := range names {
		data, err := s.vault.ReadDoc(AreaNeedsAction, name)
		if err != nil {
			invalid = append(invalid, InvalidDoc{Area: AreaNeedsAction, Name: name, Err: err})
			continue
		}
		w, err := item.Decode(data)
		if err != nil {
			if s.firstFlag(name) {
				invalid = append(invalid, InvalidDoc{Area: AreaNeedsAction, Name: name, Err: err})
			}
			continue
		}
		if len(want) > 0 && !want[w.State] {
			continue
		}
		items = append(items, w)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority.Rank() != items[j].Priority.Rank() {
			return items[i].Priority.Rank() < items[j].Priority.Rank()
		}
		return items[i].Created.Before(items[j].Created)
	})
	return items, invalid, nil
}

// GetItem loads a single work item by id from Needs_Action.
func (s *Store) GetItem(id string) (*item.WorkItem, error) {
	data, err := s.vault.ReadDoc(AreaNeedsAction, itemFile(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, item.ErrNotFound
		}
		return nil, err
	}
	return item.Decode(data)
}

// SaveItem rewrites an item document in place without a state change.
// Used for metadata updates such as execution attempt counts.
func (s *Store) SaveItem(w *item.WorkItem) error {
	data, err := item.Encode(w)
	if err != nil {
		return err
	}
	return s.vault.WriteDoc(AreaNeedsAction, itemFile(w.ID), data)
}

// Transition advances a work item through the lifecycle graph and persists
// the new state. Terminal transitions relocate the document (and its
// payload attachments) to Done with a timestamp prefix; everything else is
// an in-place header update in Needs_Action.
func (s *Store) Transition(w *item.WorkItem, to item.State) error {
	if err := w.Advance(to); err != nil {
		return err
	}

	data, err := item.Encode(w)
	if err != nil {
		return err
	}
	if err := s.vault.WriteDoc(AreaNeedsAction, itemFile(w.ID), data); err != nil {
		return err
	}

	if !to.Terminal() {
		return nil
	}

	prefix := s.now().UTC().Format("20060102_150405") + "_"
	if _, err := s.vault.MoveDoc(AreaNeedsAction, itemFile(w.ID), AreaDone, prefix); err != nil {
		return err
	}
	for _, att := range w.Attachments {
		if s.vault.DocExists(AreaNeedsAction, att) {
			if _, err := s.vault.MoveDoc(AreaNeedsAction, att, AreaDone, prefix); err != nil {
				s.log.Warn().Err(err).Str("attachment", att).Msg("failed to move attachment")
			}
		}
	}
	return nil
}

// CreatePlan persists a plan document. Planning is idempotent: if a plan
// already exists for the item, plan.ErrAlreadyPlanned is returned and
// nothing is written.
func (s *Store) CreatePlan(p *plan.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if s.vault.DocExists(AreaPlans, planFile(p.ItemID)) {
		return plan.ErrAlreadyPlanned
	}

	data, err := plan.Encode(p)
	if err != nil {
		return err
	}
	return s.vault.WriteDoc(AreaPlans, planFile(p.ItemID), data)
}

// HasPlan reports whether a plan exists for the given item.
func (s *Store) HasPlan(itemID string) bool {
	return s.vault.DocExists(AreaPlans, planFile(itemID))
}

// GetPlan loads the plan for a work item.
func (s *Store) GetPlan(itemID string) (*plan.Plan, error) {
	data, err := s.vault.ReadDoc(AreaPlans, planFile(itemID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, plan.ErrNotFound
		}
		return nil, err
	}
	return plan.Decode(data)
}

// firstFlag reports whether this is the first time a document failed
// validation, persisting the flag so the failure is reported exactly once.
func (s *Store) firstFlag(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flagged[name] {
		return false
	}
	s.flagged[name] = true
	if err := s.saveIndexLocked(); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist invalid-doc flags")
	}
	return true
}

type indexFile struct {
	Seen    map[string]string `json:"seen"`
	Flagged map[string]bool   `json:"flagged,omitempty"`
}

func (s *Store) indexPath() (string, error) {
	dir, err := s.vault.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store.json"), nil
}

func (s *Store) loadIndex() error {
	path, err := s.indexPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load store index: %w", err)
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("load store index: %w", err)
	}
	if idx.Seen != nil {
		s.seen = idx.Seen
	}
	if idx.Flagged != nil {
		s.flagged = idx.Flagged
	}
	return nil
}

func (s *Store) saveIndexLocked() error {
	path, err := s.indexPath()
	if err != nil {
		return err
	}

	data, err := json.Marshal(indexFile{Seen: s.seen, Flagged: s.flagged})
	if err != nil {
		return fmt.Errorf("save store index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save store index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save store index: %w", err)
	}
	return nil
}
