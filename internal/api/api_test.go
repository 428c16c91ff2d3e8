package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"smartcage-backend/internal/aggregator"
	"smartcage-backend/internal/coordinator"
	"smartcage-backend/internal/decoder"
	"smartcage-backend/internal/ml"
	"smartcage-backend/internal/models"
	"smartcage-backend/internal/services"
	"smartcage-backend/pkg/config"
)

const testPassword = "admin123"

type staticStatus string

func (s staticStatus) State() string { return string(s) }

type testServer struct {
	router     *gin.Engine
	store      *aggregator.Store
	messages   chan models.Message
	hub        *Hub
	categories []config.Category
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	modelPath := filepath.Join(dir, "th.json")
	require.NoError(t, ml.WriteArtifact(modelPath, ml.Artifact{
		Kind:      ml.KindSoftmax,
		Classes:   []string{models.LabelIdeal, models.LabelPanas, models.LabelDingin},
		Coef:      [][]float64{{0, 0}, {2, 0}, {-2, 0}},
		Intercept: []float64{0, -66, 44},
	}))
	categories := []config.Category{
		{Name: "0-3", ModelPath: modelPath},
		{Name: "4-7", ModelPath: modelPath},
		{Name: "8-14", ModelPath: filepath.Join(dir, "missing.json")},
	}

	shared, err := coordinator.NewFileStore(filepath.Join(dir, "shared"))
	require.NoError(t, err)
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	registry := ml.NewRegistry(ml.DefaultFallbacks())
	store := aggregator.NewStore(100)
	hub := NewHub(8)
	pipeline := services.NewPipeline(services.PipelineConfig{
		Decoder: decoder.New(decoder.Routes{
			"cage/data": models.ChannelTempHumidity,
			"cage/gas":  models.ChannelGas,
			"cage/ldr":  models.ChannelLight,
		}),
		Engine: services.NewInferenceEngine(registry),
		Store:  store,
	})
	pipeline.AddSink(hub)

	state := services.NewState(services.StateConfig{
		Registry:        registry,
		Store:           store,
		Coordinator:     coordinator.New(shared, time.Second),
		Session:         coordinator.NewSession(shared, hash, time.Second),
		Categories:      categories,
		DefaultCategory: "0-3",
	})
	messages := make(chan models.Message, 10)
	runner := services.NewRunner(state, pipeline, messages, services.RunnerConfig{
		DrainTimeout: 10 * time.Millisecond,
		LoopIdle:     5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go runner.Start(ctx)

	handler := NewHandler(HandlerConfig{
		Runner:     runner,
		Store:      store,
		Registry:   registry,
		Transport:  staticStatus("connected"),
		Categories: categories,
		Timeout:    2 * time.Second,
	})

	return &testServer{
		router:     NewRouter(handler, hub, "*"),
		store:      store,
		messages:   messages,
		hub:        hub,
		categories: categories,
	}
}

func (s *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.adminRequest(t, method, path, body, "")
}

// adminRequest sends the request with sessionID in the session header when not empty
func (s *testServer) adminRequest(t *testing.T, method, path string, body interface{}, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w := s.request(t, http.MethodPost, "/api/admin/login", LoginRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func (s *testServer) feed(t *testing.T, topic, payload string, channel models.Channel, total int) {
	t.Helper()
	s.messages <- models.Message{Topic: topic, Payload: []byte(payload), ReceivedAt: time.Now()}
	require.Eventually(t, func() bool {
		return s.store.Stats(channel).Total == total
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.request(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)

	require.Eventually(t, func() bool {
		w := s.request(t, http.MethodGet, "/api/status", nil)
		return strings.Contains(w.Body.String(), `"status":"loaded"`)
	}, 2*time.Second, 10*time.Millisecond)

	w := s.request(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Connection string            `json:"connection"`
		State      services.Snapshot `json:"state"`
		Models     []ml.SlotInfo     `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body.Connection)
	assert.Equal(t, "0-3", body.State.Category)
	assert.False(t, body.State.Admin)
	require.Len(t, body.Models, 3)
	assert.Equal(t, ml.StatusLoaded, body.Models[0].Status)
	assert.Equal(t, ml.StatusNone, body.Models[1].Status)
}

func TestStatsRecordsAndExport(t *testing.T) {
	s := newTestServer(t)
	s.feed(t, "cage/gas", `{"gas_detected": true, "temp": 60}`, models.ChannelGas, 1)
	s.feed(t, "cage/gas", `{"gas_detected": false, "temp": 30}`, models.ChannelGas, 2)

	w := s.request(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Channels []struct {
			Channel     string             `json:"channel"`
			Total       int                `json:"total"`
			Counts      map[string]int     `json:"counts"`
			Percentages map[string]float64 `json:"percentages"`
		} `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats.Channels, 3)
	gas := stats.Channels[1]
	assert.Equal(t, "gas", gas.Channel)
	assert.Equal(t, 2, gas.Total)
	assert.Equal(t, 1, gas.Counts[models.LabelBahaya])
	assert.Equal(t, 50.0, gas.Percentages[models.LabelAman])

	w = s.request(t, http.MethodGet, "/api/channels/gas/records?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records struct {
		Count   int                       `json:"count"`
		Records []models.PredictionRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Equal(t, 1, records.Count)
	assert.Equal(t, models.LabelAman, records.Records[0].Label)

	w = s.request(t, http.MethodGet, "/api/channels/gas/records?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.request(t, http.MethodGet, "/api/channels/pressure/records", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(t, http.MethodGet, "/api/channels/gas/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "smartcage_gas_")
	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "gas_detected", "temp", "prediction", "confidence", "source"}, rows[0])
	assert.Equal(t, "Bahaya", rows[1][3])
}

func TestAdminFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.request(t, http.MethodPost, "/api/admin/category", CategoryRequest{Category: "4-7"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(t, http.MethodPost, "/api/admin/login", LoginRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.request(t, http.MethodPost, "/api/admin/login", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := s.login(t)
	admin := func(path string, body interface{}) *httptest.ResponseRecorder {
		return s.adminRequest(t, http.MethodPost, path, body, id)
	}

	assert.Equal(t, http.StatusBadRequest, admin("/api/admin/category", CategoryRequest{Category: "99"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, admin("/api/admin/category", CategoryRequest{Category: "8-14"}).Code)
	require.Equal(t, http.StatusOK, admin("/api/admin/category", CategoryRequest{Category: "4-7"}).Code)

	assert.Equal(t, http.StatusBadRequest, admin("/api/admin/model", ModelRequest{Channel: "pressure", Path: "x.json"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, admin("/api/admin/model", ModelRequest{Channel: "light", Path: s.categories[2].ModelPath}).Code)
	require.Equal(t, http.StatusOK, admin("/api/admin/model", ModelRequest{Channel: "temperature-humidity", Path: s.categories[0].ModelPath}).Code)

	w = s.request(t, http.MethodGet, "/api/status", nil)
	assert.Contains(t, w.Body.String(), `"category":"4-7"`)
	assert.Contains(t, w.Body.String(), `"admin":true`)

	require.Equal(t, http.StatusOK, admin("/api/admin/logout", nil).Code)
	assert.Equal(t, http.StatusForbidden, admin("/api/admin/category", CategoryRequest{Category: "0-3"}).Code)
}

func TestAdminRoutesRejectOtherClients(t *testing.T) {
	s := newTestServer(t)
	id := s.login(t)

	for _, sessionID := range []string{"", "not-the-session"} {
		w := s.adminRequest(t, http.MethodPost, "/api/admin/category", CategoryRequest{Category: "4-7"}, sessionID)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.adminRequest(t, http.MethodPost, "/api/admin/model", ModelRequest{Channel: "temperature-humidity", Path: s.categories[1].ModelPath}, sessionID)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.adminRequest(t, http.MethodPost, "/api/admin/logout", nil, sessionID)
		assert.Equal(t, http.StatusForbidden, w.Code)
	}

	// the real admin is untouched
	w := s.request(t, http.MethodGet, "/api/status", nil)
	assert.Contains(t, w.Body.String(), `"category":"0-3"`)
	assert.Contains(t, w.Body.String(), `"admin":true`)
	require.Equal(t, http.StatusOK, s.adminRequest(t, http.MethodPost, "/api/admin/category", CategoryRequest{Category: "4-7"}, id).Code)
}

func TestLiveWebSocket(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	s.feed(t, "cage/ldr", `{"ldr_value": 3000}`, models.ChannelLight, 1)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string                  `json:"type"`
		Data models.PredictionRecord `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "prediction", msg.Type)
	assert.Equal(t, models.LabelGelap, msg.Data.Label)
	assert.Equal(t, models.ChannelLight, msg.Data.Channel)
}

func TestHubDropsForSlowClients(t *testing.T) {
	hub := NewHub(1)
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Save(context.Background(), models.PredictionRecord{Label: models.LabelAman}))
	}
	assert.Len(t, ch, 1)
}

func TestSetupCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SetupCORS("http://dashboard.local, http://localhost:3000"))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
