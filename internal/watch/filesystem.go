package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/hay-kot/steward/internal/core/item"
	"github.com/hay-kot/steward/internal/core/logging"
)

const (
	notifyDebounce = 50 * time.Millisecond
	// textPreviewLimit bounds how much of a dropped text file is read for
	// priority classification and the item body.
	textPreviewLimit = 16 * 1024
)

// FolderWatcher detects files dropped into a watch folder. Identity is a
// content hash, so renaming or re-dropping the same bytes never creates a
// second item, while edited content counts as new work.
type FolderWatcher struct {
	dir     string
	include []string
	ignore  []string
	log     zerolog.Logger

	mu       sync.Mutex
	debounce *time.Timer
	stopped  bool
}

// NewFolderWatcher builds a watcher over dir. include and ignore are
// doublestar patterns matched against paths relative to dir; an empty
// include list matches everything.
func NewFolderWatcher(dir string, include, ignore []string) (*FolderWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch folder: %s is not a directory", dir)
	}

	for _, pat := range append(append([]string{}, include...), ignore...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch folder: invalid pattern %q", pat)
		}
	}

	return &FolderWatcher{
		dir:     dir,
		include: include,
		ignore:  ignore,
		log:     logging.Component("watch.folder"),
	}, nil
}

func (w *FolderWatcher) Name() string { return "folder:" + w.dir }

// Poll scans the watch folder and returns a candidate per matching file.
func (w *FolderWatcher) Poll(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != w.dir {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		if !w.matches(filepath.ToSlash(rel)) {
			return nil
		}

		cand, err := w.candidate(path, d.Name())
		if err != nil {
			// One unreadable file must not abort the scan.
			w.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable file")
			return nil
		}
		out = append(out, cand)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch folder scan: %w", err)
	}
	return out, nil
}

func (w *FolderWatcher) matches(rel string) bool {
	for _, pat := range w.ignore {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return false
		}
	}
	if len(w.include) == 0 {
		return true
	}
	for _, pat := range w.include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (w *FolderWatcher) candidate(path, name string) (Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, err
	}

	sum := sha256.Sum256(data)
	key := "sha256:" + hex.EncodeToString(sum[:])
	size := len(data)

	body := ""
	if isTextFile(name) {
		if len(data) > textPreviewLimit {
			data = data[:textPreviewLimit]
		}
		body = string(data)
	}

	safe := SanitizeName(name)
	return Candidate{
		Key:      key,
		Type:     "file_drop",
		Source:   item.SourceFileDrop,
		Priority: ClassifyPriority(name, body),
		Title:    "New file: " + name,
		Body:     body,
		Metadata: map[string]string{
			"filename": name,
			"path":     path,
			"size":     strconv.Itoa(size),
		},
		Attachments: []Attachment{{SourcePath: path, Name: safe}},
	}, nil
}

func isTextFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt", ".csv", ".json", ".yaml", ".yml", ".log":
		return true
	}
	return false
}

// Notify starts an fsnotify stream over the watch folder and returns a
// channel that fires, debounced, when anything changes. The caller uses it
// to trigger an early poll; the periodic scan remains the source of truth,
// so a failed notify stream degrades to plain polling.
func (w *FolderWatcher) Notify(ctx context.Context) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch folder notify: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch folder notify: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer fsw.Close()
		defer w.stopNotify(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				w.nudge(ch)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("fsnotify error")
			}
		}
	}()
	return ch, nil
}

// nudge coalesces bursts of events into a single signal.
func (w *FolderWatcher) nudge(ch chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(notifyDebounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.stopped {
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	})
}

// stopNotify closes the nudge channel so consumers ranging over it exit.
// The mutex orders the close against any in-flight debounce send.
func (w *FolderWatcher) stopNotify(ch chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
	close(ch)
}
