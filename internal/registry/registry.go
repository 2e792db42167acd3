package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DefaultFileName is the registry file name used when only a directory is configured.
const DefaultFileName = "conflict_mediator_registry.json"

var ErrMalformedRegistry = errors.New("malformed registry file")

type idSet map[string]struct{}

// Registry records which artifacts are disabled for the next process start.
// All methods are safe for concurrent use. Load and Save perform file I/O
// outside the state lock.
type Registry struct {
	path   string
	logger *zap.Logger

	mu              sync.RWMutex
	disabledPatches idSet
	disabledByOwner map[string]idSet
	registered      map[string]idSet

	saveMu sync.Mutex
}

func New(path string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		path:            path,
		logger:          logger,
		disabledPatches: idSet{},
		disabledByOwner: map[string]idSet{},
		registered:      map[string]idSet{},
	}
}

func (r *Registry) Path() string {
	return r.path
}

// RegisterArtifact records that artifactID exists under owner. It does not persist.
func (r *Registry) RegisterArtifact(owner, artifactID string) {
	if owner == "" || artifactID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if insert(r.registered, owner, artifactID) {
		r.logger.Debug("artifact registered", zap.String("owner", owner), zap.String("artifact", artifactID))
	}
}

// RegisteredArtifacts returns the sorted artifacts registered for owner.
func (r *Registry) RegisteredArtifacts(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.registered[owner])
}

// Disable adds artifactID to owner's disabled set and reports whether it was new.
func (r *Registry) Disable(owner, artifactID string) bool {
	if owner == "" || artifactID == "" {
		return false
	}
	r.mu.Lock()
	added := insert(r.disabledByOwner, owner, artifactID)
	r.mu.Unlock()
	if added {
		r.logger.Info("artifact disabled for next start", zap.String("owner", owner), zap.String("artifact", artifactID))
	}
	return added
}

// DisablePatch adds patchID to the flat disabled set and reports whether it was new.
func (r *Registry) DisablePatch(patchID string) bool {
	if patchID == "" {
		return false
	}
	r.mu.Lock()
	_, exists := r.disabledPatches[patchID]
	if !exists {
		r.disabledPatches[patchID] = struct{}{}
	}
	r.mu.Unlock()
	if !exists {
		r.logger.Info("patch disabled for next start", zap.String("patch", patchID))
	}
	return !exists
}

// Enable removes artifactID from owner's disabled set.
func (r *Registry) Enable(owner, artifactID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.disabledByOwner[owner]
	if !ok {
		return false
	}
	if _, ok := set[artifactID]; !ok {
		return false
	}
	delete(set, artifactID)
	if len(set) == 0 {
		delete(r.disabledByOwner, owner)
	}
	return true
}

// EnablePatch removes patchID from the flat disabled set.
func (r *Registry) EnablePatch(patchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.disabledPatches[patchID]; !ok {
		return false
	}
	delete(r.disabledPatches, patchID)
	return true
}

func (r *Registry) IsDisabled(owner, artifactID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.disabledByOwner[owner][artifactID]
	return ok
}

func (r *Registry) IsPatchDisabled(patchID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.disabledPatches[patchID]
	return ok
}

// Snapshot is a sorted deep copy of the persisted part of the registry.
type Snapshot struct {
	DisabledPatches []string            `json:"disabled_patches"`
	DisabledByOwner map[string][]string `json:"disabled_by_owner"`
}

// Count returns the total number of disabled entries.
func (s Snapshot) Count() int {
	n := len(s.DisabledPatches)
	for _, ids := range s.DisabledByOwner {
		n += len(ids)
	}
	return n
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		DisabledPatches: sortedKeys(r.disabledPatches),
		DisabledByOwner: make(map[string][]string, len(r.disabledByOwner)),
	}
	for owner, set := range r.disabledByOwner {
		snap.DisabledByOwner[owner] = sortedKeys(set)
	}
	return snap
}

// fileFormat is the on-disk layout. The legacy keys are read but never written.
type fileFormat struct {
	DisabledPatches []string            `json:"disabled_patches"`
	DisabledByOwner map[string][]string `json:"disabled_by_owner"`

	LegacyMixins []string            `json:"disabled_mixins,omitempty"`
	LegacyByMod  map[string][]string `json:"disabled_by_mod,omitempty"`
}

// Load replaces the in-memory state with the file contents. A missing file
// yields an empty registry. On a read or parse error the prior state is kept.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("registry file not found, starting empty", zap.String("path", r.path))
			r.replace(idSet{}, map[string]idSet{})
			return nil
		}
		return fmt.Errorf("read registry %s: %w", r.path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRegistry, r.path, err)
	}

	patches := idSet{}
	byOwner := map[string]idSet{}
	for _, list := range [][]string{ff.DisabledPatches, ff.LegacyMixins} {
		for _, id := range list {
			if id != "" {
				patches[id] = struct{}{}
			}
		}
	}
	for _, m := range []map[string][]string{ff.DisabledByOwner, ff.LegacyByMod} {
		for owner, ids := range m {
			for _, id := range ids {
				if owner != "" && id != "" {
					insert(byOwner, owner, id)
				}
			}
		}
	}
	r.replace(patches, byOwner)

	r.logger.Info("registry loaded",
		zap.String("path", r.path),
		zap.Int("disabled_patches", len(patches)),
		zap.Int("owners", len(byOwner)),
	)
	return nil
}

func (r *Registry) replace(patches idSet, byOwner map[string]idSet) {
	r.mu.Lock()
	r.disabledPatches = patches
	r.disabledByOwner = byOwner
	r.mu.Unlock()
}

// Save writes the current state atomically, creating parent directories.
// Failures leave the in-memory state untouched.
func (r *Registry) Save() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	snap := r.Snapshot()
	data, err := json.MarshalIndent(fileFormat{
		DisabledPatches: snap.DisabledPatches,
		DisabledByOwner: snap.DisabledByOwner,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(r.path, data); err != nil {
		return fmt.Errorf("write registry %s: %w", r.path, err)
	}
	r.logger.Info("registry saved", zap.String("path", r.path), zap.Int("entries", snap.Count()))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func insert(m map[string]idSet, owner, id string) bool {
	set, ok := m[owner]
	if !ok {
		set = idSet{}
		m[owner] = set
	}
	if _, exists := set[id]; exists {
		return false
	}
	set[id] = struct{}{}
	return true
}

func sortedKeys(set idSet) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
