package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// ErrNotFound is returned for a preset name that is not in the store.
var ErrNotFound = errors.New("preset not found")

var reName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store manages a collection of named channel presets on disk.
type Store struct {
	baseDir    string
	presetsDir string
	indexPath  string
}

// Index contains quick lookup information for all presets.
type Index struct {
	Presets   map[string]IndexEntry `json:"presets"` // name -> entry
	UpdatedAt time.Time             `json:"updated_at"`
}

// IndexEntry contains summary info for quick listing.
type IndexEntry struct {
	Name        string    `json:"name"`
	ContentHash string    `json:"content_hash"`
	Racers      int       `json:"racers"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	s := &Store{
		baseDir:    path,
		presetsDir: filepath.Join(path, "presets"),
		indexPath:  filepath.Join(path, "index.json"),
	}
	if err := os.MkdirAll(s.presetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create presets dir: %w", err)
	}
	return s, nil
}

// Save stores a channel table under name, replacing any preset of that
// name. Returns the stored preset and whether the name was new.
func (s *Store) Save(name string, channels []protocol.RacerChannel, source Source) (*Preset, bool, error) {
	if !reName.MatchString(name) {
		return nil, false, fmt.Errorf("invalid preset name %q", name)
	}
	channels, err := Normalize(channels)
	if err != nil {
		return nil, false, err
	}
	if source.Timestamp.IsZero() {
		source.Timestamp = time.Now()
	}

	now := time.Now()
	preset, err := s.Load(name)
	isNew := errors.Is(err, ErrNotFound)
	switch {
	case isNew:
		preset = &Preset{Name: name, CreatedAt: now}
	case err != nil:
		return nil, false, err
	}
	preset.Channels = channels
	preset.ContentHash = ContentHash(channels)
	preset.Sources = append(preset.Sources, source)
	preset.UpdatedAt = now

	data, err := json.MarshalIndent(preset, "", "  ")
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(s.presetPath(name), data, 0o644); err != nil {
		return nil, false, fmt.Errorf("failed to write preset: %w", err)
	}

	if err := s.updateIndex(func(idx *Index) {
		idx.Presets[name] = IndexEntry{
			Name:        name,
			ContentHash: preset.ContentHash,
			Racers:      len(channels),
			UpdatedAt:   now,
		}
	}); err != nil {
		return nil, false, fmt.Errorf("failed to update index: %w", err)
	}
	return preset, isNew, nil
}

// Load retrieves a preset by name.
func (s *Store) Load(name string) (*Preset, error) {
	data, err := os.ReadFile(s.presetPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset %q: %w", name, err)
	}
	return &p, nil
}

// Delete removes a preset.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.presetPath(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		return err
	}
	return s.updateIndex(func(idx *Index) { delete(idx.Presets, name) })
}

// List returns all presets sorted by name.
func (s *Store) List() ([]IndexEntry, error) {
	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	entries := make([]IndexEntry, 0, len(index.Presets))
	for _, e := range index.Presets {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// FindByHash returns the names of presets holding the same channel table.
func (s *Store) FindByHash(hash string) ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.ContentHash == hash {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

func (s *Store) presetPath(name string) string {
	return filepath.Join(s.presetsDir, name+".json")
}

func (s *Store) loadIndex() (*Index, error) {
	data, err := os.ReadFile(s.indexPath)
	if os.IsNotExist(err) {
		return &Index{Presets: make(map[string]IndexEntry)}, nil
	}
	if err != nil {
		return nil, err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	if index.Presets == nil {
		index.Presets = make(map[string]IndexEntry)
	}
	return &index, nil
}

func (s *Store) updateIndex(fn func(*Index)) error {
	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	fn(index)
	index.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath, data, 0o644)
}
