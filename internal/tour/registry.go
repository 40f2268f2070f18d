// internal/tour/registry.go
package tour

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry maps tour ids to definitions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tours map[string]*Tour
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tours: make(map[string]*Tour)}
}

// Register adds or replaces t under its id.
func (r *Registry) Register(t *Tour) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("%w: registered tour must have an id", ErrInvalidTour)
	}
	r.mu.Lock()
	r.tours[t.ID] = t
	r.mu.Unlock()
	return nil
}

// Get looks a tour up by id.
func (r *Registry) Get(id string) (*Tour, error) {
	r.mu.RLock()
	t, ok := r.tours[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTourNotFound, id)
	}
	return t, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.tours))
	for id := range r.tours {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered tours.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tours)
}

// LoadFile reads a tour JSON document or exported script and registers it.
func (r *Registry) LoadFile(path string) (*Tour, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := r.Register(t); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", path, err)
	}
	return t, nil
}

// LoadDir registers every .json and .js file directly inside dir.
// It stops at the first file that fails to load.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read tour directory %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".js":
		default:
			continue
		}
		if _, err := r.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ReadFile reads a tour from a JSON document or exported script on disk.
func ReadFile(path string) (*Tour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tour file %s: %w", path, err)
	}
	t, err := Import(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load tour from %s: %w", path, err)
	}
	return t, nil
}
