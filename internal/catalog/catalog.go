package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered list of currently loaded component identifiers.
// Order matters: owner attribution picks the first listed match.
type Catalog struct {
	mu  sync.RWMutex
	ids []string
}

func New(ids ...string) *Catalog {
	c := &Catalog{}
	c.Set(ids)
	return c
}

// Set replaces the component list, dropping blanks and repeats.
func (c *Catalog) Set(ids []string) {
	cleaned := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	c.mu.Lock()
	c.ids = cleaned
	c.mu.Unlock()
}

// Add appends id if it is not already listed.
func (c *Catalog) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.ids {
		if existing == id {
			return false
		}
	}
	c.ids = append(c.ids, id)
	return true
}

func (c *Catalog) LoadedComponents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Manifest is the YAML description of loaded components and the artifacts
// each one declares as disableable.
type Manifest struct {
	Components []string            `yaml:"components"`
	Artifacts  map[string][]string `yaml:"artifacts"`
}

// ArtifactRegistrar receives the artifacts a manifest declares.
type ArtifactRegistrar interface {
	RegisterArtifact(owner, artifactID string)
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse component manifest: %w", err)
	}
	return &m, nil
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read component manifest: %w", err)
	}
	return ParseManifest(data)
}

// Apply replaces the catalog contents with the manifest and registers its
// artifacts. Owners named only under artifacts are appended to the catalog.
func (m *Manifest) Apply(c *Catalog, reg ArtifactRegistrar) {
	c.Set(m.Components)
	owners := make([]string, 0, len(m.Artifacts))
	for owner := range m.Artifacts {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		c.Add(owner)
		if reg == nil {
			continue
		}
		for _, id := range m.Artifacts[owner] {
			reg.RegisterArtifact(owner, id)
		}
	}
}
