package layers

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownLayer is returned when a key does not name a registered layer
var ErrUnknownLayer = errors.New("unknown layer")

// Layer keys
const (
	KeyHeatmap  = "heatmap"
	KeyRoutes   = "routes"
	KeyStations = "stations"
	KeyVehicles = "vehicles"
)

// Direction for Move
type Direction string

// Direction constants
const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Descriptor is one entry of the ordered layer list
type Descriptor struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

// DefaultDescriptors returns the initial stack, bottom to top
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{Key: KeyHeatmap, Label: "Risk heatmap", Visible: true},
		{Key: KeyRoutes, Label: "Routes", Visible: true},
		{Key: KeyStations, Label: "Stations", Visible: true},
		{Key: KeyVehicles, Label: "Vehicles", Visible: true},
	}
}

// Manager holds the ordered, toggleable layer list. Later entries paint on
// top. It knows nothing about what a layer draws.
type Manager struct {
	mu     sync.RWMutex
	layers []Descriptor
}

// NewManager creates a manager seeded with the given descriptors
func NewManager(initial []Descriptor) *Manager {
	layers := make([]Descriptor, len(initial))
	copy(layers, initial)
	return &Manager{layers: layers}
}

// List returns a copy of the descriptors in paint order
func (m *Manager) List() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Descriptor, len(m.layers))
	copy(out, m.layers)
	return out
}

// Toggle flips the visibility of a layer
func (m *Manager) Toggle(key string) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(key)
	if i < 0 {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownLayer, key)
	}
	m.layers[i].Visible = !m.layers[i].Visible
	return m.layers[i], nil
}

// SetVisible sets the visibility of a layer explicitly
func (m *Manager) SetVisible(key string, visible bool) (Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(key)
	if i < 0 {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownLayer, key)
	}
	m.layers[i].Visible = visible
	return m.layers[i], nil
}

// MoveUp swaps the entry at index with the one before it.
// The first entry and out-of-range indexes are left alone.
func (m *Manager) MoveUp(index int) []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index > 0 && index < len(m.layers) {
		m.layers[index-1], m.layers[index] = m.layers[index], m.layers[index-1]
	}
	return m.copyLocked()
}

// MoveDown swaps the entry at index with the one after it.
// The last entry and out-of-range indexes are left alone.
func (m *Manager) MoveDown(index int) []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index >= 0 && index < len(m.layers)-1 {
		m.layers[index], m.layers[index+1] = m.layers[index+1], m.layers[index]
	}
	return m.copyLocked()
}

// Move dispatches to MoveUp or MoveDown
func (m *Manager) Move(index int, dir Direction) ([]Descriptor, error) {
	switch dir {
	case Up:
		return m.MoveUp(index), nil
	case Down:
		return m.MoveDown(index), nil
	}
	return nil, fmt.Errorf("invalid direction %q", dir)
}

// Reorder replaces the order with the given keys. The keys must be a
// permutation of the current ones; visibility is carried over.
func (m *Manager) Reorder(keys []string) ([]Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(keys) != len(m.layers) {
		return nil, fmt.Errorf("reorder needs %d keys, got %d", len(m.layers), len(keys))
	}
	next := make([]Descriptor, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return nil, fmt.Errorf("duplicate layer key %q", k)
		}
		i := m.indexLocked(k)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, k)
		}
		seen[k] = true
		next = append(next, m.layers[i])
	}
	m.layers = next
	return m.copyLocked(), nil
}

// Visible returns the keys of visible layers in paint order
func (m *Manager) Visible() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.layers))
	for _, l := range m.layers {
		if l.Visible {
			keys = append(keys, l.Key)
		}
	}
	return keys
}

func (m *Manager) indexLocked(key string) int {
	for i, l := range m.layers {
		if l.Key == key {
			return i
		}
	}
	return -1
}

func (m *Manager) copyLocked() []Descriptor {
	out := make([]Descriptor, len(m.layers))
	copy(out, m.layers)
	return out
}
