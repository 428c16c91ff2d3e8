package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"smartcage-backend/internal/models"
)

// Coordinator persists and reconciles the active model selection shared by all instances
type Coordinator struct {
	store   Store
	timeout time.Duration
}

func New(store Store, timeout time.Duration) *Coordinator {
	return &Coordinator{store: store, timeout: timeout}
}

// Store returns the underlying durable store
func (c *Coordinator) Store() Store {
	return c.store
}

// PublishConfig overwrites the shared record; last writer wins
func (c *Coordinator) PublishConfig(ctx context.Context, category, modelPath string) error {
	cfg := models.SharedConfig{Category: category, ModelPath: modelPath}
	if err := putJSON(ctx, c.store, c.timeout, KeyConfig, cfg); err != nil {
		return fmt.Errorf("failed to publish config: %w", err)
	}
	log.Printf("Coordinator: Published config category=%s model=%s", category, modelPath)
	return nil
}

// Current returns the shared record; ok is false when none was ever published
func (c *Coordinator) Current(ctx context.Context) (models.SharedConfig, bool, error) {
	var cfg models.SharedConfig
	err := getJSON(ctx, c.store, c.timeout, KeyConfig, &cfg)
	if errors.Is(err, ErrNotFound) {
		return models.SharedConfig{}, false, nil
	}
	if err != nil {
		return models.SharedConfig{}, false, err
	}
	return cfg, true, nil
}

// ReconcileLocal reports whether the shared category differs from the caller's local one.
// changed is false when nothing was published yet or on error.
func (c *Coordinator) ReconcileLocal(ctx context.Context, local string) (cfg models.SharedConfig, changed bool, err error) {
	cfg, ok, err := c.Current(ctx)
	if err != nil || !ok {
		return models.SharedConfig{}, false, err
	}
	if cfg.Category == local {
		return cfg, false, nil
	}
	return cfg, true, nil
}
