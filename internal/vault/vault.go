// Package vault implements the durable, directory-structured store that
// every other component reads and writes through: work items, plans,
// approval requests, the append-only audit log, and the status projection.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Vault areas. Each area is a folder under the vault root; a document's
// presence in an area is persisted evidence of its lifecycle position.
const (
	AreaInbox           = "Inbox"
	AreaNeedsAction     = "Needs_Action"
	AreaPlans           = "Plans"
	AreaPendingApproval = "Pending_Approval"
	AreaApproved        = "Approved"
	AreaRejected        = "Rejected"
	AreaDone            = "Done"
	AreaLogs            = "Logs"
	AreaBriefings       = "Briefings"

	// stateDir holds engine bookkeeping (watcher dedup indexes). Hidden so
	// area scans never pick it up.
	stateDir = ".state"
)

// requiredAreas must exist before the engine will run. A vault missing any
// of these is structurally broken and startup aborts rather than silently
// inventing structure.
var requiredAreas = []string{
	AreaNeedsAction,
	AreaPlans,
	AreaPendingApproval,
	AreaApproved,
	AreaRejected,
	AreaDone,
	AreaLogs,
}

// allAreas is everything Scaffold creates.
var allAreas = []string{
	AreaInbox,
	AreaNeedsAction,
	AreaPlans,
	AreaPendingApproval,
	AreaApproved,
	AreaRejected,
	AreaDone,
	AreaLogs,
	AreaBriefings,
}

// ErrIncompleteVault is returned when required areas are missing at startup.
var ErrIncompleteVault = errors.New("vault is missing required areas")

// Vault provides path resolution and document IO rooted at a vault directory.
type Vault struct {
	root string
}

// New returns a Vault rooted at the given directory. Call CheckStructure
// before use; New performs no IO.
func New(root string) *Vault {
	return &Vault{root: root}
}

// Scaffold creates the full vault folder set. Used by `steward init`;
// the runtime engine never creates required areas implicitly.
func Scaffold(root string) error {
	for _, area := range allAreas {
		if err := os.MkdirAll(filepath.Join(root, area), 0o755); err != nil {
			return fmt.Errorf("scaffold vault: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, stateDir), 0o755); err != nil {
		return fmt.Errorf("scaffold vault: %w", err)
	}
	return nil
}

// CheckStructure verifies every required area exists and is a directory.
func (v *Vault) CheckStructure() error {
	var missing []string
	for _, area := range requiredAreas {
		info, err := os.Stat(filepath.Join(v.root, area))
		if err != nil || !info.IsDir() {
			missing = append(missing, area)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteVault, strings.Join(missing, ", "))
	}
	return nil
}

// Root returns the vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// Dir returns the absolute path of a vault area.
func (v *Vault) Dir(area string) string {
	return filepath.Join(v.root, area)
}

// StateDir returns the engine bookkeeping directory, creating it on demand.
func (v *Vault) StateDir() (string, error) {
	dir := filepath.Join(v.root, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// ListDocs returns the markdown documents in an area, sorted by name.
// Hidden files and placeholders are skipped.
func (v *Vault) ListDocs(area string) ([]string, error) {
	entries, err := os.ReadDir(v.Dir(area))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", area, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".md" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReadDoc reads a document from an area.
func (v *Vault) ReadDoc(area, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(v.Dir(area), name))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", area, name, err)
	}
	return data, nil
}

// WriteDoc writes a document into an area. The write goes to a temp file in
// the same directory followed by a rename, so concurrent readers never
// observe a partially written document.
func (v *Vault) WriteDoc(area, name string, data []byte) error {
	dir := v.Dir(area)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp*")
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", area, name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s/%s: %w", area, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s/%s: %w", area, name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s/%s: %w", area, name, err)
	}
	return nil
}

// MoveDoc relocates a document between areas with a single atomic rename.
// An optional prefix is prepended to the destination name. Returns the
// destination file name.
func (v *Vault) MoveDoc(fromArea, name, toArea, prefix string) (string, error) {
	dest := prefix + name
	src := filepath.Join(v.Dir(fromArea), name)
	dst := filepath.Join(v.Dir(toArea), dest)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s/%s to %s: %w", fromArea, name, toArea, err)
	}
	return dest, nil
}

// DocExists reports whether a document is present in an area.
func (v *Vault) DocExists(area, name string) bool {
	info, err := os.Stat(filepath.Join(v.Dir(area), name))
	return err == nil && !info.IsDir()
}

// CopyIn copies an external payload file into an area under the given name.
func (v *Vault) CopyIn(srcPath, area, name string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("copy in %s: %w", srcPath, err)
	}
	dst := filepath.Join(v.Dir(area), name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copy in %s: %w", srcPath, err)
	}
	return nil
}
