package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/domain/services/detection"
	"hyaluron-watch/internal/sources"
	"hyaluron-watch/pkg/logger"
)

func newRegistry(t *testing.T, scrapers ...sources.Scraper) *sources.Registry {
	t.Helper()
	reg := sources.NewRegistry(logger.NewNop())
	for _, s := range scrapers {
		require.NoError(t, reg.Register(s))
	}
	return reg
}

func profile(name string) models.RawProfile {
	return models.RawProfile{ProfileName: name, ProfileLink: "https://instagram.com/" + name}
}

func TestMonitorRunBuildsOrderedBatches(t *testing.T) {
	insta := &stubScraper{
		platform: "Instagram",
		results: map[string][]models.RawProfile{
			"hyaluron pen": {profile("a"), profile("b")},
			"#hyaluronpen": {profile("b"), profile("c")},
		},
	}
	site := &siteScraper{
		stubScraper: stubScraper{
			platform: "Website",
			results:  map[string][]models.RawProfile{"https://studio.example": {{ProfileName: "Studio"}}},
		},
		sites: []string{"https://studio.example"},
	}
	analyzer := &fakeAnalyzer{}
	logs := &memSearchLogs{}
	recorder := &countingRecorder{}
	status := &memStatusStore{}

	m := NewMonitor(config.MonitorConfig{}, nil, MonitorDeps{
		Registry:   newRegistry(t, insta, site),
		Analyzer:   analyzer,
		SearchLogs: logs,
		Recorder:   recorder,
		Status:     status,
	}, logger.NewNop())

	report, err := m.Run(context.Background(), models.ScanRequest{Terms: []string{"hyaluron pen", "#hyaluronpen"}})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Analyzed)

	require.Len(t, analyzer.batches, 2)
	assert.Equal(t, "Instagram", analyzer.batches[0].Platform)
	var names []string
	for _, p := range analyzer.batches[0].Profiles {
		names = append(names, p.ProfileName)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, "Website", analyzer.batches[1].Platform)
	assert.Equal(t, []string{"https://studio.example"}, site.fetched())

	require.Len(t, logs.entries, 3)
	assert.Equal(t, "hyaluron pen", logs.entries[0].SearchTerm)
	assert.Equal(t, 2, logs.entries[0].ResultsCount)
	assert.Equal(t, SearchStatusCompleted, logs.entries[0].Status)

	assert.Equal(t, map[string]int{"Instagram": 2, "Website": 1}, recorder.fetches)
	assert.Equal(t, 1, recorder.runs)

	st := m.Status()
	assert.Equal(t, RunStateCompleted, st.State)
	assert.False(t, st.Running)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, 5, st.Fetched)
	assert.Same(t, report, st.Report)

	require.Len(t, status.saved, 2)
	assert.True(t, status.saved[0].Running)
	assert.Equal(t, RunStateCompleted, status.saved[1].State)
}

func TestMonitorFetchFailureIsLogged(t *testing.T) {
	insta := &stubScraper{
		platform: "Instagram",
		results:  map[string][]models.RawProfile{"ok": {profile("a")}},
		errs:     map[string]error{"broken": errors.New("403 forbidden")},
	}
	analyzer := &fakeAnalyzer{}
	logs := &memSearchLogs{}

	m := NewMonitor(config.MonitorConfig{}, []string{"broken", "ok"}, MonitorDeps{
		Registry:   newRegistry(t, insta),
		Analyzer:   analyzer,
		SearchLogs: logs,
	}, logger.NewNop())

	_, err := m.Run(context.Background(), models.ScanRequest{})
	require.NoError(t, err)

	require.Len(t, logs.entries, 2)
	assert.Equal(t, SearchStatusFailed, logs.entries[0].Status)
	assert.Equal(t, "403 forbidden", logs.entries[0].Error)
	require.Len(t, analyzer.batches, 1)
	assert.Len(t, analyzer.batches[0].Profiles, 1)
}

func TestMonitorTermSelection(t *testing.T) {
	insta := &stubScraper{platform: "Instagram"}
	m := NewMonitor(config.MonitorConfig{MaxTermsPerRun: 2}, []string{"a", "b", "c"}, MonitorDeps{
		Registry: newRegistry(t, insta),
		Analyzer: &fakeAnalyzer{},
	}, logger.NewNop())

	_, err := m.Run(context.Background(), models.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, insta.fetched())

	defaults := NewMonitor(config.MonitorConfig{MaxTermsPerRun: 1}, nil, MonitorDeps{
		Registry: newRegistry(t, &stubScraper{platform: "Web Search"}),
		Analyzer: &fakeAnalyzer{},
	}, logger.NewNop())
	assert.Equal(t, []string{sources.DefaultKeywords[0]}, defaults.termsFor(&stubScraper{}, nil))
}

func TestMonitorPlatformFilter(t *testing.T) {
	insta := &stubScraper{platform: "Instagram"}
	fb := &stubScraper{platform: "Facebook"}
	analyzer := &fakeAnalyzer{}

	m := NewMonitor(config.MonitorConfig{}, []string{"x"}, MonitorDeps{
		Registry: newRegistry(t, insta, fb),
		Analyzer: analyzer,
	}, logger.NewNop())

	_, err := m.Run(context.Background(), models.ScanRequest{Platforms: []string{"facebook"}})
	require.NoError(t, err)
	assert.Empty(t, insta.fetched())
	require.Len(t, analyzer.batches, 1)
	assert.Equal(t, "Facebook", analyzer.batches[0].Platform)
}

func TestMonitorNoScrapers(t *testing.T) {
	recorder := &countingRecorder{}
	m := NewMonitor(config.MonitorConfig{}, nil, MonitorDeps{
		Registry: newRegistry(t, &stubScraper{platform: "Instagram", disabled: true}),
		Analyzer: &fakeAnalyzer{},
		Recorder: recorder,
	}, logger.NewNop())

	_, err := m.Run(context.Background(), models.ScanRequest{})
	assert.ErrorIs(t, err, ErrNoScrapers)

	st := m.Status()
	assert.Equal(t, RunStateFailed, st.State)
	assert.Equal(t, ErrNoScrapers.Error(), st.Error)
	assert.Equal(t, 1, recorder.runErrors)
}

func TestMonitorRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	insta := &stubScraper{platform: "Instagram", started: started, block: release}

	m := NewMonitor(config.MonitorConfig{}, []string{"x"}, MonitorDeps{
		Registry: newRegistry(t, insta),
		Analyzer: &fakeAnalyzer{},
	}, logger.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = m.Run(context.Background(), models.ScanRequest{})
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never started")
	}

	assert.True(t, m.Running())
	_, err := m.Run(context.Background(), models.ScanRequest{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, m.Running())
}

func TestMonitorCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMonitor(config.MonitorConfig{}, []string{"x"}, MonitorDeps{
		Registry: newRegistry(t, &stubScraper{platform: "Instagram"}),
		Analyzer: &fakeAnalyzer{},
	}, logger.NewNop())

	_, err := m.Run(ctx, models.ScanRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunStateFailed, m.Status().State)
}

func TestMonitorFilesCasesForEvidence(t *testing.T) {
	f := newCaseFixture(t)
	withEvidence := suspiciousProfile("beauty_by_anna")
	withoutEvidence := suspiciousProfile("no_shot")
	withoutEvidence.Screenshots = nil
	noEmail := suspiciousProfile("no_mail")
	noEmail.Email = ""

	analyzer := &fakeAnalyzer{suspicious: []models.SuspiciousProfile{withEvidence, withoutEvidence, noEmail}}
	m := NewMonitor(config.MonitorConfig{FileCases: true}, []string{"x"}, MonitorDeps{
		Registry: newRegistry(t, &stubScraper{platform: "Instagram"}),
		Analyzer: analyzer,
		Cases:    f.svc,
	}, logger.NewNop())

	_, err := m.Run(context.Background(), models.ScanRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Status().CasesFiled)
	assert.Len(t, f.board.entries, 2)
	assert.Equal(t, []string{"beauty_by_anna@example.de"}, f.mailer.requests)

	cases, err := f.svc.List(context.Background(), models.CaseFilter{Status: models.CaseStatusAuthorizationRequested})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "beauty_by_anna", cases[0].ProfileName)
}

func TestMonitorFileCasesOverride(t *testing.T) {
	f := newCaseFixture(t)
	analyzer := &fakeAnalyzer{suspicious: []models.SuspiciousProfile{suspiciousProfile("x")}}
	m := NewMonitor(config.MonitorConfig{FileCases: true}, []string{"x"}, MonitorDeps{
		Registry: newRegistry(t, &stubScraper{platform: "Instagram"}),
		Analyzer: analyzer,
		Cases:    f.svc,
	}, logger.NewNop())

	off := false
	_, err := m.Run(context.Background(), models.ScanRequest{FileCases: &off})
	require.NoError(t, err)
	assert.Empty(t, f.board.entries)
}

type memPersistence struct {
	mu  sync.Mutex
	ids map[string]uuid.UUID
}

func (p *memPersistence) UpsertProfile(_ context.Context, platform string, raw models.RawProfile) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := platform + "/" + raw.ProfileName
	if id, ok := p.ids[key]; ok {
		return id, nil
	}
	id := uuid.New()
	p.ids[key] = id
	return id, nil
}

func (p *memPersistence) UpsertPost(context.Context, uuid.UUID, models.Post) (uuid.UUID, error) {
	return uuid.New(), nil
}

type pathEvidence struct{}

func (pathEvidence) CaptureAndStore(_ context.Context, url string, profileID uuid.UUID, postID *uuid.UUID) (*models.Screenshot, error) {
	return &models.Screenshot{ID: uuid.New(), ProfileID: profileID, PostID: postID, URL: url, FilePath: "screenshots/shot.png", IsEvidence: true}, nil
}

func TestMonitorWithDetectionCoordinator(t *testing.T) {
	coordinator, err := detection.NewCoordinatorFromConfig(config.DetectionConfig{
		SuspicionThreshold:      50,
		CommercialAmplification: 3,
		ProfileWeights:          config.ProfileWeights{Trigger: 0.5, Price: 0.2, Contact: 0.1, Commercial: 0.2},
		PostWeights:             config.PostWeights{Trigger: 0.6, Price: 0.2, Commercial: 0.2},
	}, detection.Collaborators{
		Persistence: &memPersistence{ids: map[string]uuid.UUID{}},
		Evidence:    pathEvidence{},
	}, logger.NewNop())
	require.NoError(t, err)

	insta := &stubScraper{
		platform: "Instagram",
		results: map[string][]models.RawProfile{
			"hyaluron pen": {
				{
					ProfileName: "beauty_studio_berlin",
					ProfileLink: "https://instagram.com/beauty_studio_berlin",
					Description: "Beauty Studio mit Hyaluron Pen Behandlungen. Lippen aufspritzen ohne Nadel ab 79€!",
					PostText:    "Vorher-Nachher Bilder. #hyaluronpen",
					Email:       "info@beautystudio.de",
					Location:    "Berlin",
				},
				{ProfileName: "travel_blog", Description: "Reisen durch Europa"},
			},
		},
	}

	f := newCaseFixture(t)
	m := NewMonitor(config.MonitorConfig{FileCases: true}, []string{"hyaluron pen"}, MonitorDeps{
		Registry: newRegistry(t, insta),
		Analyzer: coordinator,
		Cases:    f.svc,
	}, logger.NewNop())

	report, err := m.Run(context.Background(), models.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Analyzed)
	assert.Equal(t, 1, report.Suspicious)

	require.Len(t, f.board.entries, 1)
	assert.Equal(t, "beauty_studio_berlin", f.board.entries[0].ProfileName)
	assert.Equal(t, "screenshots/shot.png", f.board.entries[0].ScreenshotPath)
	assert.InDelta(t, 88.46, f.board.entries[0].RiskScore, 0.01)
}
