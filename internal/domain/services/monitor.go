package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/sources"
	"hyaluron-watch/pkg/logger"
)

var (
	// ErrRunInProgress is returned when Run is called while a run is active
	ErrRunInProgress = errors.New("monitor run already in progress")

	// ErrNoScrapers is returned when no enabled scraper matches the request
	ErrNoScrapers = errors.New("no enabled scrapers")
)

// Search log statuses
const (
	SearchStatusCompleted = "completed"
	SearchStatusFailed    = "failed"
)

// Analyzer scores scraped batches and forwards suspicious profiles
type Analyzer interface {
	AnalyzeScrapingResults(ctx context.Context, batches []models.PlatformBatch) ([]models.SuspiciousProfile, *models.BatchReport)
}

// SearchLogStore records every scraper fetch
type SearchLogStore interface {
	CreateSearchLog(ctx context.Context, entry *models.SearchLog) error
}

// RunRecorder receives scraper and run metrics
type RunRecorder interface {
	ScraperFetched(platform string, results int, duration time.Duration, err error)
	RunFinished(duration time.Duration, err error)
}

// StatusStore shares the run status with other processes
type StatusStore interface {
	SaveRunStatus(ctx context.Context, status any) error
}

// MonitorDeps are the collaborators of a Monitor. Registry and Analyzer are
// required.
type MonitorDeps struct {
	Registry   *sources.Registry
	Analyzer   Analyzer
	Cases      *CaseService
	SearchLogs SearchLogStore
	Recorder   RunRecorder
	Status     StatusStore
}

// Monitor runs one scrape, detect and file pass at a time
type Monitor struct {
	cfg     config.MonitorConfig
	terms   []string
	deps    MonitorDeps
	tracker *runTracker
	now     func() time.Time
	logger  *logger.Logger
}

// NewMonitor creates a new monitor. terms are the configured search terms;
// an empty list falls back to the built-in keywords.
func NewMonitor(cfg config.MonitorConfig, terms []string, deps MonitorDeps, log *logger.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		terms:   sources.DefaultTerms(terms),
		deps:    deps,
		tracker: newRunTracker(),
		now:     time.Now,
		logger:  log.WithComponent("monitor"),
	}
}

// Status returns a snapshot of the current or last run
func (m *Monitor) Status() RunStatus {
	return m.tracker.snapshot()
}

// Running reports whether a run is in progress
func (m *Monitor) Running() bool {
	return m.tracker.snapshot().Running
}

// Run performs a full pass: fetch every term from every enabled scraper,
// analyze the batches and file cases for profiles with evidence
func (m *Monitor) Run(ctx context.Context, req models.ScanRequest) (*models.BatchReport, error) {
	start := m.now()
	runID, ok := m.tracker.begin(start)
	if !ok {
		return nil, ErrRunInProgress
	}

	log := m.logger.With().Str("run_id", runID).Logger()
	log.Info().
		Strs("platforms", req.Platforms).
		Int("terms", len(req.Terms)).
		Msg("monitor run started")
	m.saveStatus(ctx)

	report, err := m.run(ctx, req)

	m.tracker.finish(m.now(), report, err)
	duration := m.now().Sub(start)
	if m.deps.Recorder != nil {
		m.deps.Recorder.RunFinished(duration, err)
	}
	m.saveStatus(context.WithoutCancel(ctx))

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("monitor run failed")
		return report, err
	}

	status := m.tracker.snapshot()
	log.Info().
		Int("fetched", status.Fetched).
		Int("analyzed", report.Analyzed).
		Int("suspicious", report.Suspicious).
		Int("cases_filed", status.CasesFiled).
		Dur("duration", duration).
		Msg("monitor run completed")

	return report, nil
}

func (m *Monitor) run(ctx context.Context, req models.ScanRequest) (*models.BatchReport, error) {
	scrapers := m.deps.Registry.ListEnabled(req.Platforms...)
	if len(scrapers) == 0 {
		return nil, ErrNoScrapers
	}

	batches := make([]models.PlatformBatch, 0, len(scrapers))
	for i, scraper := range scrapers {
		m.tracker.step("scraping "+scraper.Platform(), i*60/len(scrapers))

		batch := models.PlatformBatch{Platform: scraper.Platform()}
		seen := make(map[string]bool)
		for _, term := range m.termsFor(scraper, req.Terms) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("monitor run cancelled: %w", err)
			}
			for _, p := range m.fetch(ctx, scraper, term) {
				key := profileKey(p)
				if seen[key] {
					continue
				}
				seen[key] = true
				batch.Profiles = append(batch.Profiles, p)
			}
		}
		batches = append(batches, batch)
	}

	m.tracker.step("analyzing", 60)
	suspicious, report := m.deps.Analyzer.AnalyzeScrapingResults(ctx, batches)

	if m.shouldFileCases(req) {
		m.tracker.step("filing cases", 80)
		m.fileCases(ctx, suspicious)
	}

	return report, nil
}

// termsFor picks the targets for a scraper: its own list when it has one,
// else the request terms, else the configured terms
func (m *Monitor) termsFor(scraper sources.Scraper, requested []string) []string {
	terms := m.terms
	if provider, ok := scraper.(sources.TermProvider); ok {
		terms = provider.Terms()
	} else if len(requested) > 0 {
		terms = requested
	}
	if m.cfg.MaxTermsPerRun > 0 && len(terms) > m.cfg.MaxTermsPerRun {
		terms = terms[:m.cfg.MaxTermsPerRun]
	}
	return terms
}

// fetch runs one scraper query and logs it. A failed fetch yields no
// profiles and never stops the run.
func (m *Monitor) fetch(ctx context.Context, scraper sources.Scraper, term string) []models.RawProfile {
	started := m.now()
	profiles, err := scraper.Fetch(ctx, term)
	finished := m.now()

	platform := scraper.Platform()
	if m.deps.Recorder != nil {
		m.deps.Recorder.ScraperFetched(platform, len(profiles), finished.Sub(started), err)
	}

	entry := &models.SearchLog{
		ID:           uuid.New(),
		Platform:     platform,
		SearchTerm:   term,
		ResultsCount: len(profiles),
		Status:       SearchStatusCompleted,
		StartedAt:    started,
		FinishedAt:   &finished,
	}
	if err != nil {
		entry.Status = SearchStatusFailed
		entry.Error = err.Error()
		entry.ResultsCount = 0
		m.logger.Warn().
			Err(err).
			Str("platform", platform).
			Str("term", term).
			Msg("scraper fetch failed")
	}
	if m.deps.SearchLogs != nil {
		if logErr := m.deps.SearchLogs.CreateSearchLog(ctx, entry); logErr != nil {
			m.logger.Warn().Err(logErr).Str("platform", platform).Msg("failed to record search log")
		}
	}
	if err != nil {
		return nil
	}

	m.tracker.addFetched(len(profiles))
	return profiles
}

func (m *Monitor) shouldFileCases(req models.ScanRequest) bool {
	if m.deps.Cases == nil {
		return false
	}
	if req.FileCases != nil {
		return *req.FileCases
	}
	return m.cfg.FileCases
}

// fileCases opens a case for every suspicious profile that produced
// evidence and asks providers with an address for their authorization
func (m *Monitor) fileCases(ctx context.Context, suspicious []models.SuspiciousProfile) {
	for _, profile := range suspicious {
		if len(profile.Screenshots) == 0 {
			continue
		}
		log := m.logger.WithProfile(profile.Platform, profile.ProfileName)

		c, err := m.deps.Cases.FileCase(ctx, profile)
		if err != nil {
			log.Warn().Err(err).Msg("failed to file case")
			continue
		}
		m.tracker.addCase()

		if c.Status != models.CaseStatusFiled || c.Email == "" || !m.deps.Cases.MailerEnabled() {
			continue
		}
		if _, err := m.deps.Cases.RequestAuthorization(ctx, c.ID); err != nil {
			log.Warn().Err(err).Str("case_id", c.ID.String()).Msg("failed to request authorization")
		}
	}
}

func (m *Monitor) saveStatus(ctx context.Context) {
	if m.deps.Status == nil {
		return
	}
	if err := m.deps.Status.SaveRunStatus(ctx, m.tracker.snapshot()); err != nil {
		m.logger.Debug().Err(err).Msg("failed to publish run status")
	}
}

// profileKey identifies a record within one platform batch
func profileKey(p models.RawProfile) string {
	if p.ProfileLink != "" {
		return "link:" + strings.ToLower(p.ProfileLink)
	}
	return "name:" + strings.ToLower(p.ProfileName)
}
