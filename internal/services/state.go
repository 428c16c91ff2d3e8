package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"smartcage-backend/internal/aggregator"
	"smartcage-backend/internal/coordinator"
	"smartcage-backend/internal/database"
	"smartcage-backend/internal/metrics"
	"smartcage-backend/internal/ml"
	"smartcage-backend/internal/models"
	"smartcage-backend/pkg/config"
)

// ErrUnknownCategory is returned when switching to a category with no configured model
var ErrUnknownCategory = errors.New("unknown age category")

// Config event names
const (
	EventLogin          = "login"
	EventLogout         = "logout"
	EventTakeover       = "takeover"
	EventCategorySwitch = "category_switch"
	EventModelLoad      = "model_load"
	EventReconcile      = "reconcile"
)

// EventRecorder persists config events
type EventRecorder interface {
	SaveConfigEvent(ctx context.Context, ev database.ConfigEvent) error
}

// Snapshot is a read-only copy of the state for observers on other goroutines
type Snapshot struct {
	Category     string    `json:"category"`
	ModelPath    string    `json:"model_path"`
	Admin        bool      `json:"admin"`
	SessionID    string    `json:"-"`
	LoginTime    time.Time `json:"login_time,omitempty"`
	LastSyncedAt time.Time `json:"last_synced_at,omitempty"`
	LastSyncErr  string    `json:"last_sync_error,omitempty"`
}

// State is the pipeline state of one running instance.
// It is owned by the Runner goroutine; other goroutines use Runner.Do or Snapshot.
type State struct {
	Registry    *ml.Registry
	Store       *aggregator.Store
	Coordinator *coordinator.Coordinator
	Session     *coordinator.Session

	categories      []config.Category
	defaultCategory string
	modelPaths      map[models.Channel]string
	events          EventRecorder

	category    string
	thPath      string // last temperature-humidity path this instance tried to load
	lastSynced  time.Time
	lastSyncErr error
	snapshot    atomic.Pointer[Snapshot]
}

// StateConfig holds the collaborators and settings of a State
type StateConfig struct {
	Registry        *ml.Registry
	Store           *aggregator.Store
	Coordinator     *coordinator.Coordinator
	Session         *coordinator.Session
	Categories      []config.Category
	DefaultCategory string
	GasModelPath    string
	LightModelPath  string
	Events          EventRecorder
}

// NewState creates the state; call Bootstrap before processing messages
func NewState(cfg StateConfig) *State {
	s := &State{
		Registry:        cfg.Registry,
		Store:           cfg.Store,
		Coordinator:     cfg.Coordinator,
		Session:         cfg.Session,
		categories:      cfg.Categories,
		defaultCategory: cfg.DefaultCategory,
		modelPaths: map[models.Channel]string{
			models.ChannelGas:   cfg.GasModelPath,
			models.ChannelLight: cfg.LightModelPath,
		},
		events:   cfg.Events,
		category: cfg.DefaultCategory,
	}
	s.publishSnapshot()
	return s
}

// Category returns the locally active age category
func (s *State) Category() string {
	return s.category
}

// Categories returns the configured age categories
func (s *State) Categories() []config.Category {
	return s.categories
}

// Snapshot returns the last published copy of the state
func (s *State) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

func (s *State) modelPathFor(category string) (string, bool) {
	for _, c := range s.categories {
		if c.Name == category {
			return c.ModelPath, true
		}
	}
	return "", false
}

// Bootstrap adopts the shared config if one exists, else the default category,
// and loads every configured model. Load failures leave the fallback rules active.
func (s *State) Bootstrap(ctx context.Context) {
	category := s.defaultCategory
	path, _ := s.modelPathFor(category)

	shared, ok, err := s.Coordinator.Current(ctx)
	switch {
	case err != nil:
		log.Printf("State: Could not read shared config, using default category %s: %v", category, err)
	case ok:
		category = shared.Category
		path = s.resolvePath(shared)
		log.Printf("State: Adopted shared category %s", category)
	default:
		log.Printf("State: No shared config yet, using default category %s", category)
	}

	s.category = category
	s.loadModel(ctx, models.ChannelTempHumidity, path)
	for _, ch := range []models.Channel{models.ChannelGas, models.ChannelLight} {
		if p := s.modelPaths[ch]; p != "" {
			s.loadModel(ctx, ch, p)
		}
	}
	s.publishSnapshot()
}

// resolvePath prefers the shared record's model path, then the category mapping
func (s *State) resolvePath(shared models.SharedConfig) string {
	if shared.ModelPath != "" {
		return shared.ModelPath
	}
	path, _ := s.modelPathFor(shared.Category)
	return path
}

func (s *State) loadModel(ctx context.Context, ch models.Channel, path string) error {
	if ch == models.ChannelTempHumidity {
		s.thPath = path
	}
	if path == "" {
		err := &ml.LoadError{Kind: ml.NotFound, Path: path, Err: fmt.Errorf("no model configured")}
		metrics.ModelLoads.WithLabelValues(string(ch), metrics.LoadFailed).Inc()
		return err
	}

	err := s.Registry.LoadModel(ch, path)
	result := metrics.LoadOK
	if err != nil {
		result = metrics.LoadFailed
	}
	metrics.ModelLoads.WithLabelValues(string(ch), result).Inc()
	s.record(ctx, database.ConfigEvent{Event: EventModelLoad, Channel: string(ch), Category: s.category, ModelPath: path}, err)
	return err
}

// Sync runs once per loop iteration: admin takeover detection, then config reconciliation
func (s *State) Sync(ctx context.Context) {
	defer s.publishSnapshot()

	wasAdmin := s.Session.IsAdmin()
	demoted, err := s.Session.Poll(ctx)
	if err != nil {
		log.Printf("State: %v", err)
	}
	if demoted && wasAdmin {
		s.record(ctx, database.ConfigEvent{Event: EventTakeover}, nil)
	}

	shared, changed, err := s.Coordinator.ReconcileLocal(ctx, s.category)
	s.lastSyncErr = err
	if err != nil {
		log.Printf("State: Reconcile failed, keeping category %s: %v", s.category, err)
		return
	}
	s.lastSynced = time.Now()
	if !changed {
		s.adoptModelPath(ctx, shared)
		return
	}

	log.Printf("State: Shared category changed %s -> %s", s.category, shared.Category)
	s.category = shared.Category
	path := s.resolvePath(shared)
	s.record(ctx, database.ConfigEvent{Event: EventReconcile, Category: shared.Category, ModelPath: path}, nil)
	if err := s.loadModel(ctx, models.ChannelTempHumidity, path); err != nil {
		log.Printf("State: Category %s active without a loaded model: %v", shared.Category, err)
	}
}

// adoptModelPath follows a temperature-humidity reload published under the current category.
// A path is tried once; a failed load is not retried until the shared path changes again.
func (s *State) adoptModelPath(ctx context.Context, shared models.SharedConfig) {
	if shared.ModelPath == "" || shared.ModelPath == s.thPath {
		return
	}
	if slot := s.Registry.Slot(models.ChannelTempHumidity); slot != nil && slot.Model != nil && slot.Model.Path == shared.ModelPath {
		s.thPath = shared.ModelPath
		return
	}

	log.Printf("State: Shared model path changed %s -> %s", s.thPath, shared.ModelPath)
	s.record(ctx, database.ConfigEvent{Event: EventReconcile, Category: shared.Category, ModelPath: shared.ModelPath}, nil)
	if err := s.loadModel(ctx, models.ChannelTempHumidity, shared.ModelPath); err != nil {
		log.Printf("State: Keeping previous model for category %s: %v", shared.Category, err)
	}
}

// Login claims the admin session
func (s *State) Login(ctx context.Context, password string) (string, error) {
	defer s.publishSnapshot()

	id, err := s.Session.Login(ctx, password)
	s.record(ctx, database.ConfigEvent{Event: EventLogin}, err)
	return id, err
}

// Logout releases the admin session
func (s *State) Logout(ctx context.Context) error {
	defer s.publishSnapshot()

	err := s.Session.Logout(ctx)
	s.record(ctx, database.ConfigEvent{Event: EventLogout}, err)
	return err
}

// Authorize checks that sessionID is the admin session held by this instance
func (s *State) Authorize(sessionID string) error {
	return s.Session.AuthorizeID(sessionID)
}

// SwitchCategory loads the category's model and, on success, publishes it to all instances
func (s *State) SwitchCategory(ctx context.Context, category string) error {
	if err := s.Session.Authorize(); err != nil {
		return err
	}
	path, ok := s.modelPathFor(category)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	if err := s.loadModel(ctx, models.ChannelTempHumidity, path); err != nil {
		s.record(ctx, database.ConfigEvent{Event: EventCategorySwitch, Category: category, ModelPath: path}, err)
		return err
	}

	defer s.publishSnapshot()
	s.category = category
	err := s.Coordinator.PublishConfig(ctx, category, path)
	s.record(ctx, database.ConfigEvent{Event: EventCategorySwitch, Category: category, ModelPath: path}, err)
	return err
}

// LoadModel reloads a channel's model from path.
// A temperature-humidity reload is published with the current category and adopted by peers on their next Sync.
func (s *State) LoadModel(ctx context.Context, ch models.Channel, path string) error {
	if err := s.Session.Authorize(); err != nil {
		return err
	}
	if err := s.loadModel(ctx, ch, path); err != nil {
		return err
	}
	if ch != models.ChannelTempHumidity {
		return nil
	}

	defer s.publishSnapshot()
	return s.Coordinator.PublishConfig(ctx, s.category, path)
}

func (s *State) record(ctx context.Context, ev database.ConfigEvent, err error) {
	ev.Timestamp = time.Now()
	ev.Success = err == nil
	if err != nil {
		ev.Error = err.Error()
	}
	if s.events == nil {
		return
	}
	if saveErr := s.events.SaveConfigEvent(ctx, ev); saveErr != nil {
		metrics.SinkFailures.WithLabelValues("config_events").Inc()
		log.Printf("State: Failed to save %s event: %v", ev.Event, saveErr)
	}
}

func (s *State) publishSnapshot() {
	snap := &Snapshot{
		Category:     s.category,
		Admin:        s.Session.IsAdmin(),
		SessionID:    s.Session.ID(),
		LoginTime:    s.Session.LoginTime(),
		LastSyncedAt: s.lastSynced,
	}
	if slot := s.Registry.Slot(models.ChannelTempHumidity); slot != nil && slot.Model != nil {
		snap.ModelPath = slot.Model.Path
	}
	if s.lastSyncErr != nil {
		snap.LastSyncErr = s.lastSyncErr.Error()
	}
	if snap.Admin {
		metrics.AdminActive.Set(1)
	} else {
		metrics.AdminActive.Set(0)
	}
	s.snapshot.Store(snap)
}
