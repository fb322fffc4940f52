// Package codeql orchestrates the code graph build pipeline: source
// registry, revision-gated database builds, query execution, and graph
// emission through an external static-analysis CLI.
package codeql

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrSourceNotFound is returned by registry operations on an unknown id.
var ErrSourceNotFound = errors.New("code source not found")

// Source types accepted by the registry.
const (
	SourceTypeRepository = "gitlab"
	SourceTypeFilesystem = "filesystem"
)

// CodeSource is one registered code source. The id is deterministic from
// (area, type, path) so re-registration overwrites rather than duplicates.
type CodeSource struct {
	SourceID           string         `json:"source_id"`
	BusinessArea       string         `json:"business_area"`
	SourceType         string         `json:"source_type"`
	Path               string         `json:"path"`
	Name               string         `json:"name,omitempty"`
	Languages          []string       `json:"languages"`
	Enabled            bool           `json:"enabled"`
	LastAnalyzedCommit string         `json:"last_analyzed_commit,omitempty"`
	LastAnalyzedTime   time.Time      `json:"last_analyzed_time,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// RegisterOptions are the optional knobs for Register.
type RegisterOptions struct {
	Name string
	// Disabled registers the source without enabling analysis.
	Disabled bool
	// OverrideID replaces the derived id. Rarely needed.
	OverrideID string
	Metadata   map[string]any
}

// Registry is the durable catalog of code sources. The backing JSON file is
// loaded once and rewritten in full, atomically, on every mutation.
type Registry struct {
	path string

	mu      sync.RWMutex
	sources map[string]CodeSource
}

type registryFile struct {
	Version int                   `json:"version"`
	Sources map[string]CodeSource `json:"sources"`
}

// LoadRegistry reads the registry from disk, or starts empty when the file
// does not exist yet.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:    path,
		sources: make(map[string]CodeSource),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read source registry: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse source registry: %w", err)
	}
	if file.Sources != nil {
		r.sources = file.Sources
	}

	return r, nil
}

// Register adds a code source and returns its id. Registering the same
// (area, type, path) twice yields the same id and overwrites the prior
// entry without preserving its analysis state.
func (r *Registry) Register(area, sourceType, path string, languages []string, opts RegisterOptions) (string, error) {
	id := opts.OverrideID
	if id == "" {
		id = SourceID(area, sourceType, path)
	}

	name := opts.Name
	if name == "" {
		name = path
	}

	source := CodeSource{
		SourceID:     id,
		BusinessArea: area,
		SourceType:   sourceType,
		Path:         path,
		Name:         name,
		Languages:    languages,
		Enabled:      !opts.Disabled,
		Metadata:     opts.Metadata,
	}

	r.mu.Lock()
	if _, exists := r.sources[id]; exists {
		slog.Warn("Overwriting registered code source", "source_id", id)
	}
	r.sources[id] = source
	err := r.save()
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	return id, nil
}

// Get returns a source by id.
func (r *Registry) Get(id string) (CodeSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.sources[id]
	if !ok {
		return CodeSource{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	return source, nil
}

// List returns all sources for a business area, or all sources when area
// is empty.
func (r *Registry) List(area string) []CodeSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []CodeSource
	for _, source := range r.sources {
		if area == "" || source.BusinessArea == area {
			out = append(out, source)
		}
	}
	return out
}

// ListEnabled returns the enabled sources for a business area.
func (r *Registry) ListEnabled(area string) []CodeSource {
	var out []CodeSource
	for _, source := range r.List(area) {
		if source.Enabled {
			out = append(out, source)
		}
	}
	return out
}

// UpdateCommitHash records a successful analysis of the given revision.
func (r *Registry) UpdateCommitHash(id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	source.LastAnalyzedCommit = hash
	source.LastAnalyzedTime = time.Now()
	r.sources[id] = source

	return r.save()
}

// Delete removes a source.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sources[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	delete(r.sources, id)

	return r.save()
}

// save writes the registry atomically. Caller holds the lock.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(registryFile{Version: 1, Sources: r.sources}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal source registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry temp file: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename registry file: %w", err)
	}

	return nil
}

// SourceID derives the deterministic id for a source.
// Format: "{area}_{type}_{normalized_path}".
func SourceID(area, sourceType, path string) string {
	return fmt.Sprintf("%s_%s_%s", area, sourceType, NormalizePath(path))
}

// NormalizePath flattens a repository or filesystem path into an
// identifier-safe token.
func NormalizePath(path string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", ".", "_", " ", "_", "-", "_")
	return strings.Trim(replacer.Replace(path), "_")
}
