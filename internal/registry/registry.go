// Package registry implements the C11 on-disk artifact registry: it
// persists trained model artifacts under models/<kind>_<timestamp>.<ext>,
// maintains an atomically-swapped latest/<kind> pointer, and keeps a
// registry.json index of every version. Writes go through a single
// caller-owned path; reads never see a partially-written file because the
// pointer swap is a rename.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Entry describes one persisted artifact version.
type Entry struct {
	Kind      string             `json:"kind"`
	Version   string             `json:"version"`
	Filename  string             `json:"filename"`
	SizeBytes int64              `json:"size_bytes"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// kindIndex is one kind's section of registry.json.
type kindIndex struct {
	Latest   *Entry  `json:"latest"`
	Versions []Entry `json:"versions"`
}

// index is the full on-disk registry.json shape.
type index map[string]*kindIndex

// Registry manages artifact files under a root directory, structured as
//
//	<root>/models/<kind>_<timestamp>.<ext>
//	<root>/latest/<kind>            (copy of the current version's bytes)
//	<root>/registry.json
type Registry struct {
	root string
	log  zerolog.Logger
}

// New constructs a Registry rooted at dir, creating the models/ and
// latest/ subdirectories if they don't exist.
func New(dir string, log zerolog.Logger) (*Registry, error) {
	for _, sub := range []string{"models", "latest"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("registry: create %s: %w", sub, err)
		}
	}
	return &Registry{root: dir, log: log.With().Str("component", "registry").Logger()}, nil
}

// Publish writes data as a new version of kind, atomically swaps the
// latest/<kind> pointer to it, and records the version in registry.json.
// The timestamp format matches the teacher's backup-archive naming
// (2006-01-02-150405) for consistent lexicographic ordering.
func (r *Registry) Publish(kind, ext string, data []byte, metrics map[string]float64) (Entry, error) {
	timestamp := time.Now().UTC().Format("2006-01-02-150405")
	filename := fmt.Sprintf("%s_%s.%s", kind, timestamp, ext)
	versionPath := filepath.Join(r.root, "models", filename)

	if err := os.WriteFile(versionPath, data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("registry: write version %s: %w", filename, err)
	}

	latestPath := filepath.Join(r.root, "latest", kind)
	tmpPath := latestPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("registry: stage latest pointer for %s: %w", kind, err)
	}
	if err := os.Rename(tmpPath, latestPath); err != nil {
		return Entry{}, fmt.Errorf("registry: swap latest pointer for %s: %w", kind, err)
	}

	entry := Entry{
		Kind:      kind,
		Version:   timestamp,
		Filename:  filename,
		SizeBytes: int64(len(data)),
		CreatedAt: time.Now().UTC(),
		Metrics:   metrics,
	}

	if err := r.recordEntry(entry); err != nil {
		return Entry{}, err
	}

	r.log.Info().Str("kind", kind).Str("version", timestamp).Msg("artifact published")
	return entry, nil
}

// Latest returns the bytes of kind's current artifact via the latest/
// pointer, which is lock-free for readers since it only ever sees the
// pre- or post-rename state.
func (r *Registry) Latest(kind string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(r.root, "latest", kind))
	if err != nil {
		return nil, fmt.Errorf("registry: read latest %s: %w", kind, err)
	}
	return data, nil
}

// LatestEntry returns the registry.json metadata for kind's current
// version.
func (r *Registry) LatestEntry(kind string) (Entry, bool, error) {
	idx, err := r.readIndex()
	if err != nil {
		return Entry{}, false, err
	}
	ki, ok := idx[kind]
	if !ok || ki.Latest == nil {
		return Entry{}, false, nil
	}
	return *ki.Latest, true, nil
}

// Versions returns every recorded version of kind, newest first.
func (r *Registry) Versions(kind string) ([]Entry, error) {
	idx, err := r.readIndex()
	if err != nil {
		return nil, err
	}
	ki, ok := idx[kind]
	if !ok {
		return nil, nil
	}
	out := append([]Entry(nil), ki.Versions...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Registry) indexPath() string {
	return filepath.Join(r.root, "registry.json")
}

func (r *Registry) readIndex() (index, error) {
	data, err := os.ReadFile(r.indexPath())
	if os.IsNotExist(err) {
		return index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read registry.json: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("registry: parse registry.json: %w", err)
	}
	return idx, nil
}

// recordEntry appends entry to registry.json and updates kind's latest
// pointer. registry.json itself is rewritten via a temp-file-then-rename
// to avoid a reader observing a half-written index.
func (r *Registry) recordEntry(entry Entry) error {
	idx, err := r.readIndex()
	if err != nil {
		return err
	}
	ki, ok := idx[entry.Kind]
	if !ok {
		ki = &kindIndex{}
		idx[entry.Kind] = ki
	}
	ki.Versions = append(ki.Versions, entry)
	ki.Latest = &entry

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal registry.json: %w", err)
	}

	tmpPath := r.indexPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("registry: stage registry.json: %w", err)
	}
	if err := os.Rename(tmpPath, r.indexPath()); err != nil {
		return fmt.Errorf("registry: swap registry.json: %w", err)
	}
	return nil
}
