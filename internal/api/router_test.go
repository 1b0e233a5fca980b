package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyaluron-watch/internal/api/handlers"
	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/domain/services"
	"hyaluron-watch/internal/domain/services/detection"
	"hyaluron-watch/internal/infrastructure/cache"
	"hyaluron-watch/internal/infrastructure/database/repository"
	"hyaluron-watch/internal/metrics"
	"hyaluron-watch/pkg/logger"
)

const testAPIKey = "secret-key"

type fakeRunner struct {
	mu       sync.Mutex
	startErr error
	reqs     []models.ScanRequest
	done     chan struct{}
	status   services.RunStatus
}

func (f *fakeRunner) Start(_ context.Context, req models.ScanRequest) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return nil
}

func (f *fakeRunner) Status() services.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

type fakeProfiles struct {
	profiles []*models.Profile
	detail   *repository.ProfileDetail
	filter   models.ProfileFilter
}

func (f *fakeProfiles) ListProfiles(_ context.Context, filter models.ProfileFilter) ([]*models.Profile, error) {
	f.filter = filter
	return f.profiles, nil
}

func (f *fakeProfiles) GetProfileDetail(_ context.Context, id uuid.UUID) (*repository.ProfileDetail, error) {
	if f.detail != nil && f.detail.ID == id {
		return f.detail, nil
	}
	return nil, nil
}

type fakeCases struct {
	cases     map[uuid.UUID]*models.Case
	escalated []*models.Case
	checkErr  error
}

func (f *fakeCases) Get(_ context.Context, id uuid.UUID) (*models.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, services.ErrCaseNotFound
	}
	return c, nil
}

func (f *fakeCases) List(_ context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	var out []*models.Case
	for _, c := range f.cases {
		if filter.Status == "" || c.Status == filter.Status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCases) move(id uuid.UUID, next models.CaseStatus) (*models.Case, error) {
	c, err := f.Get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransition(next) {
		return nil, services.ErrInvalidTransition
	}
	c.Status = next
	return c, nil
}

func (f *fakeCases) RequestAuthorization(_ context.Context, id uuid.UUID) (*models.Case, error) {
	return f.move(id, models.CaseStatusAuthorizationRequested)
}

func (f *fakeCases) MarkResponded(_ context.Context, id uuid.UUID) (*models.Case, error) {
	return f.move(id, models.CaseStatusResponded)
}

func (f *fakeCases) Close(_ context.Context, id uuid.UUID) (*models.Case, error) {
	return f.move(id, models.CaseStatusClosed)
}

func (f *fakeCases) CheckDeadlines(_ context.Context, _ time.Time) ([]*models.Case, error) {
	return f.escalated, f.checkErr
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	handler  http.Handler
	runner   *fakeRunner
	profiles *fakeProfiles
	cases    *fakeCases
	redis    *miniredis.Miniredis
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Config{
		App:       config.AppConfig{Version: "test", APIKey: testAPIKey},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Detection: config.DetectionConfig{
			SuspicionThreshold:      50,
			CommercialAmplification: 3,
			ProfileWeights:          config.ProfileWeights{Trigger: 0.5, Price: 0.2, Contact: 0.1, Commercial: 0.2},
			PostWeights:             config.PostWeights{Trigger: 0.6, Price: 0.2, Commercial: 0.2},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	log := logger.NewNop()
	m := metrics.New(nil)
	coordinator, err := detection.NewCoordinatorFromConfig(cfg.Detection, detection.Collaborators{Recorder: m}, log)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedisFromClient(client, "hw:", time.Hour, log)

	ts := &testServer{
		runner:   &fakeRunner{status: services.RunStatus{State: services.RunStateIdle}},
		profiles: &fakeProfiles{},
		cases:    &fakeCases{cases: map[uuid.UUID]*models.Case{}},
		redis:    mr,
		metrics:  m,
	}

	h := handlers.NewHandlers(handlers.Dependencies{
		Version:      cfg.App.Version,
		Scorer:       coordinator.Engine(),
		Batch:        coordinator,
		Threshold:    coordinator.Threshold(),
		Cache:        cache.NewAssessmentCache(rc),
		Scans:        ts.runner,
		SharedStatus: rc,
		Profiles:     ts.profiles,
		Cases:        ts.cases,
		Checks:       map[string]handlers.Pinger{"redis": rc, "postgres": nil},
		Logger:       log,
	})
	ts.handler = NewRouter(cfg, h, rc, m.Handler(), m, log).Setup()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
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
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func scenarioProfile() models.RawProfile {
	return models.RawProfile{
		ProfileName: "beauty_lips_berlin",
		ProfileLink: "https://www.instagram.com/beauty_lips_berlin/",
		Description: "Beauty Studio mit Hyaluron Pen Behandlungen. Lippen aufspritzen ohne Nadel ab 79€!",
		PostText:    "Vorher-Nachher Bilder. #hyaluronpen",
		Email:       "info@example.de",
	}
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handlers.HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestReady(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[handlers.HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Checks["redis"])
	assert.Equal(t, "not configured", resp.Checks["postgres"])
}

func TestReadyReportsFailedDependency(t *testing.T) {
	h := handlers.NewHealthHandler("test", map[string]handlers.Pinger{"postgres": failingPinger{}}, logger.NewNop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[handlers.HealthResponse](t, rec)
	assert.Equal(t, "not ready", resp.Status)
	assert.Contains(t, resp.Checks["postgres"], "connection refused")
}

func TestAPIRequiresKey(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testAPIKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAnalyzeProfile(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/analyze/profile", scenarioProfile())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[handlers.ProfileAnalysisResponse](t, rec)
	assert.InDelta(t, 88.46, resp.RiskScore, 0.01)
	assert.True(t, resp.Suspicious)
	assert.False(t, resp.Cached)
	assert.True(t, resp.Extraction.ContainsTriggerKeyword)

	// identical text is served from the cache
	rec = ts.do(t, http.MethodPost, "/api/v1/analyze/profile", scenarioProfile())
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decode[handlers.ProfileAnalysisResponse](t, rec)
	assert.True(t, cached.Cached)
	assert.InDelta(t, resp.RiskScore, cached.RiskScore, 1e-9)
}

func TestAnalyzeProfileInvalidBody(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/profile", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzePost(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/analyze/post", handlers.AnalyzePostRequest{
		PostText: "Hyaluron Pen Aktion: nur 89€ statt 120€",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.PostAssessment](t, rec)
	assert.True(t, resp.ContainsHyaluronPen)
	assert.True(t, resp.ContainsPrice)
	assert.NotEmpty(t, resp.PriceMentioned)
}

func TestAnalyzeBatchKeepsOrder(t *testing.T) {
	ts := newTestServer(t, nil)

	second := scenarioProfile()
	second.ProfileName = "lips_koeln"
	body := handlers.AnalyzeBatchRequest{Batches: []models.PlatformBatch{
		{Platform: "Instagram", Profiles: []models.RawProfile{scenarioProfile(), {ProfileName: "cat_pics", Description: "Katzenfotos"}}},
		{Platform: "Facebook", Profiles: []models.RawProfile{second}},
	}}

	rec := ts.do(t, http.MethodPost, "/api/v1/analyze/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[handlers.BatchAnalysisResponse](t, rec)
	require.Len(t, resp.Suspicious, 2)
	assert.Equal(t, "beauty_lips_berlin", resp.Suspicious[0].ProfileName)
	assert.Equal(t, "Instagram", resp.Suspicious[0].Platform)
	assert.Equal(t, "lips_koeln", resp.Suspicious[1].ProfileName)
	assert.Equal(t, 3, resp.Report.Analyzed)
	assert.Equal(t, 2, resp.Report.Suspicious)
}

func TestAnalyzeBatchValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/analyze/batch", handlers.AnalyzeBatchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/analyze/batch", handlers.AnalyzeBatchRequest{
		Batches: []models.PlatformBatch{{Profiles: []models.RawProfile{{}}}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Platform")
}

func TestStartScan(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.runner.done = make(chan struct{})

	rec := ts.do(t, http.MethodPost, "/api/v1/scans", models.ScanRequest{Terms: []string{"hyaluron pen"}})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-ts.runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan was not started")
	}
	ts.runner.mu.Lock()
	defer ts.runner.mu.Unlock()
	require.Len(t, ts.runner.reqs, 1)
	assert.Equal(t, []string{"hyaluron pen"}, ts.runner.reqs[0].Terms)
}

func TestStartScanConflict(t *testing.T) {
	for name, err := range map[string]error{
		"local run": services.ErrRunInProgress,
		"lock held": services.ErrLockHeld,
	} {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.runner.startErr = err

			rec := ts.do(t, http.MethodPost, "/api/v1/scans", nil)
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.Empty(t, ts.runner.reqs)
		})
	}
}

func TestStartScanLockFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.runner.startErr = errors.New("redis unavailable")

	rec := ts.do(t, http.MethodPost, "/api/v1/scans", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScanStatusFallsBackToSharedStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	shared, err := json.Marshal(services.RunStatus{RunID: "run-7", State: services.RunStateCompleted, Progress: 100})
	require.NoError(t, err)
	require.NoError(t, ts.redis.Set("hw:"+cache.KeyRunStatus, string(shared)))

	rec := ts.do(t, http.MethodGet, "/api/v1/scans/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[services.RunStatus](t, rec)
	assert.Equal(t, "run-7", status.RunID)
	assert.Equal(t, services.RunStateCompleted, status.State)
}

func TestProfiles(t *testing.T) {
	ts := newTestServer(t, nil)
	p := &models.Profile{ID: uuid.New(), Platform: "Instagram", ProfileName: "lips", RiskScore: 91}
	ts.profiles.profiles = []*models.Profile{p}
	ts.profiles.detail = &repository.ProfileDetail{Profile: p}

	rec := ts.do(t, http.MethodGet, "/api/v1/profiles?min_risk=80&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handlers.ProfileListResponse](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.InDelta(t, 80, ts.profiles.filter.MinRisk, 1e-9)
	assert.Equal(t, 10, ts.profiles.filter.Limit)

	rec = ts.do(t, http.MethodGet, "/api/v1/profiles/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/profiles/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/profiles/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaseEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	c := &models.Case{ID: uuid.New(), ProfileName: "lips", Status: models.CaseStatusFiled}
	ts.cases.cases[c.ID] = c

	rec := ts.do(t, http.MethodGet, "/api/v1/cases?status=filed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[handlers.CaseListResponse](t, rec).Count)

	rec = ts.do(t, http.MethodPost, "/api/v1/cases/"+c.ID.String()+"/authorization-request", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CaseStatusAuthorizationRequested, decode[models.Case](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/api/v1/cases/"+c.ID.String()+"/authorization-request", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/cases/"+c.ID.String()+"/response", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/cases/"+c.ID.String()+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CaseStatusClosed, decode[models.Case](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/cases/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckDeadlines(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cases.escalated = []*models.Case{{ID: uuid.New(), Status: models.CaseStatusReported}}
	ts.cases.checkErr = errors.New("smtp down for b_studio")

	rec := ts.do(t, http.MethodPost, "/api/v1/cases/check-deadlines", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[handlers.DeadlineCheckResponse](t, rec)
	assert.Equal(t, 1, resp.Count)
	assert.Contains(t, resp.Errors, "smtp down")
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodGet, "/api/v1/cases", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/cases", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodPost, "/api/v1/analyze/batch", handlers.AnalyzeBatchRequest{Batches: []models.PlatformBatch{
		{Platform: "Instagram", Profiles: []models.RawProfile{scenarioProfile()}},
	}})

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `hyaluron_profiles_analyzed_total{platform="instagram"} 1`)
	assert.Contains(t, body, "hyaluron_http_requests_total")
}

func TestWebSocketUnavailableWithoutHub(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
