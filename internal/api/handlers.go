package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartcage-backend/internal/aggregator"
	"smartcage-backend/internal/coordinator"
	"smartcage-backend/internal/ml"
	"smartcage-backend/internal/models"
	"smartcage-backend/internal/services"
	"smartcage-backend/pkg/config"
)

// SessionHeader carries the session id returned by login on privileged requests
const SessionHeader = "X-Admin-Session"

// ConnectionStatus reports the transport connection state
type ConnectionStatus interface {
	State() string
}

// Handler serves the observer and admin endpoints
type Handler struct {
	runner     *services.Runner
	store      *aggregator.Store
	registry   *ml.Registry
	transport  ConnectionStatus
	categories []config.Category
	timeout    time.Duration
}

// HandlerConfig holds the collaborators of a Handler
type HandlerConfig struct {
	Runner     *services.Runner
	Store      *aggregator.Store
	Registry   *ml.Registry
	Transport  ConnectionStatus
	Categories []config.Category
	Timeout    time.Duration // bound on queued admin commands
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Handler{
		runner:     cfg.Runner,
		store:      cfg.Store,
		registry:   cfg.Registry,
		transport:  cfg.Transport,
		categories: cfg.Categories,
		timeout:    cfg.Timeout,
	}
}

type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

type CategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

type ModelRequest struct {
	Channel string `json:"channel" binding:"required"`
	Path    string `json:"path" binding:"required"`
}

// ChannelSummary is the stats view of one channel
type ChannelSummary struct {
	models.ChannelStats
	Percentages map[string]float64       `json:"percentages"`
	Health      *models.HealthScore      `json:"health,omitempty"`
	Last        *models.PredictionRecord `json:"last,omitempty"`
}

func (h *Handler) Status(c *gin.Context) {
	connection := "unknown"
	if h.transport != nil {
		connection = h.transport.State()
	}

	slots := make([]ml.SlotInfo, 0, len(models.Channels()))
	for _, slot := range h.registry.Slots() {
		slots = append(slots, slot.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"connection": connection,
		"state":      h.runner.Snapshot(),
		"models":     slots,
		"categories": h.categories,
	})
}

func (h *Handler) Stats(c *gin.Context) {
	summaries := make([]ChannelSummary, 0, len(models.Channels()))
	for _, ch := range models.Channels() {
		summaries = append(summaries, h.summary(ch))
	}
	c.JSON(http.StatusOK, gin.H{"channels": summaries})
}

func (h *Handler) summary(ch models.Channel) ChannelSummary {
	stats := h.store.Stats(ch)
	s := ChannelSummary{ChannelStats: stats, Percentages: make(map[string]float64)}
	for _, label := range ch.Vocabulary() {
		s.Percentages[label] = stats.Percent(label)
	}
	if health, ok := h.store.HealthScore(ch); ok {
		s.Health = &health
	}
	if last, ok := h.store.Last(ch); ok {
		s.Last = &last
	}
	return s
}

func (h *Handler) Records(c *gin.Context) {
	ch, ok := channelParam(c)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	records := h.store.Latest(ch, limit)
	c.JSON(http.StatusOK, gin.H{
		"channel": ch,
		"count":   len(records),
		"records": records,
	})
}

func (h *Handler) Export(c *gin.Context) {
	ch, ok := channelParam(c)
	if !ok {
		return
	}

	filename := fmt.Sprintf("smartcage_%s_%s.csv", ch, time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := h.store.WriteCSV(c.Writer, ch); err != nil {
		c.Error(err)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sessionID string
	err := h.do(c, func(ctx context.Context, s *services.State) error {
		var err error
		sessionID, err = s.Login(ctx, req.Password)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "state": coordinator.StateAdmin})
}

func (h *Handler) Logout(c *gin.Context) {
	err := h.doAdmin(c, func(ctx context.Context, s *services.State) error {
		return s.Logout(ctx)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": coordinator.StateAnonymous})
}

func (h *Handler) SwitchCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.doAdmin(c, func(ctx context.Context, s *services.State) error {
		return s.SwitchCategory(ctx, req.Category)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": req.Category})
}

func (h *Handler) LoadModel(c *gin.Context) {
	var req ModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := models.ParseChannel(req.Channel)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.doAdmin(c, func(ctx context.Context, s *services.State) error {
		return s.LoadModel(ctx, ch, req.Path)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": h.registry.Slot(ch).Info()})
}

func (h *Handler) do(c *gin.Context, fn func(ctx context.Context, s *services.State) error) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	return h.runner.Do(ctx, fn)
}

// doAdmin runs fn only for the caller holding this instance's admin session
func (h *Handler) doAdmin(c *gin.Context, fn func(ctx context.Context, s *services.State) error) error {
	sessionID := c.GetHeader(SessionHeader)
	return h.do(c, func(ctx context.Context, s *services.State) error {
		if err := s.Authorize(sessionID); err != nil {
			return err
		}
		return fn(ctx, s)
	})
}

func channelParam(c *gin.Context) (models.Channel, bool) {
	ch, err := models.ParseChannel(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return ch, true
}

// writeError maps domain errors to status codes
func writeError(c *gin.Context, err error) {
	var loadErr *ml.LoadError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coordinator.ErrInvalidPassword):
		status = http.StatusUnauthorized
	case errors.Is(err, coordinator.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrUnknownCategory):
		status = http.StatusBadRequest
	case errors.As(err, &loadErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
