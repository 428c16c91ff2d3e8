package ml

import (
	"fmt"
	"log"
	"sync"
	"time"

	"smartcage-backend/internal/models"
)

// SlotStatus describes the model state of a classifier slot
type SlotStatus string

const (
	StatusNone      SlotStatus = "none"
	StatusLoaded    SlotStatus = "loaded"
	StatusNotLoaded SlotStatus = "not_loaded"
)

// Slot is an immutable snapshot of one channel's classifier.
// Loading a model swaps in a new Slot, readers keep whatever snapshot they hold.
type Slot struct {
	Channel   models.Channel
	Model     *Model
	Fallback  FallbackRule
	Status    SlotStatus
	LastError error
}

// HasModel reports whether a fitted model is loaded
func (s *Slot) HasModel() bool {
	return s.Model != nil
}

// SlotInfo is the observer view of a slot
type SlotInfo struct {
	Channel    models.Channel `json:"channel"`
	Status     SlotStatus     `json:"status"`
	ModelName  string         `json:"model_name,omitempty"`
	ModelPath  string         `json:"model_path,omitempty"`
	Capability Capability     `json:"capability,omitempty"`
	LoadedAt   *time.Time     `json:"loaded_at,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
}

// Info converts the slot into its observer view
func (s *Slot) Info() SlotInfo {
	info := SlotInfo{Channel: s.Channel, Status: s.Status}
	if s.Model != nil {
		info.ModelName = s.Model.Name
		info.ModelPath = s.Model.Path
		info.Capability = s.Model.Capability
		loadedAt := s.Model.LoadedAt
		info.LoadedAt = &loadedAt
	}
	if s.LastError != nil {
		info.LastError = s.LastError.Error()
	}
	return info
}

// Loader loads a model artifact from a path
type Loader func(path string) (*Model, error)

// Registry holds one classifier slot per channel
type Registry struct {
	mu     sync.RWMutex
	slots  map[models.Channel]*Slot
	loader Loader
}

// NewRegistry creates a registry with fallback-only slots for every channel
func NewRegistry(fallbacks map[models.Channel]FallbackRule) *Registry {
	r := &Registry{
		slots:  make(map[models.Channel]*Slot),
		loader: LoadArtifact,
	}
	for _, ch := range models.Channels() {
		rule := fallbacks[ch]
		if rule == nil {
			rule = NoModelRule
		}
		r.slots[ch] = &Slot{Channel: ch, Fallback: rule, Status: StatusNone}
	}
	return r
}

// SetLoader replaces the artifact loader
func (r *Registry) SetLoader(loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loader = loader
}

// Slot returns the current snapshot for a channel, nil for an unknown channel
func (r *Registry) Slot(ch models.Channel) *Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[ch]
}

// Slots returns snapshots for every channel in display order
func (r *Registry) Slots() []*Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Slot, 0, len(r.slots))
	for _, ch := range models.Channels() {
		out = append(out, r.slots[ch])
	}
	return out
}

// LoadModel loads the artifact at path into the channel's slot.
// On failure an already loaded model stays in place.
func (r *Registry) LoadModel(ch models.Channel, path string) error {
	r.mu.RLock()
	_, ok := r.slots[ch]
	loader := r.loader
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown channel %q", ch)
	}

	model, err := loader(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	next := *r.slots[ch]
	if err != nil {
		next.LastError = err
		if next.Model == nil {
			next.Status = StatusNotLoaded
		}
		r.slots[ch] = &next
		log.Printf("ML: Failed to load %s model from %s: %v", ch, path, err)
		return err
	}

	next.Model = model
	next.Status = StatusLoaded
	next.LastError = nil
	r.slots[ch] = &next
	log.Printf("ML: %s classifier now %s (%s)", ch, model.Name, model.Capability)
	return nil
}

// ClearModel removes the channel's model, falling back to its rule
func (r *Registry) ClearModel(ch models.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[ch]
	if !ok {
		return
	}
	r.slots[ch] = &Slot{Channel: ch, Fallback: slot.Fallback, Status: StatusNone}
}
