package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/board"
	"hyaluron-watch/internal/domain/models"
)

type memCaseStore struct {
	mu         sync.Mutex
	cases      map[uuid.UUID]models.Case
	boardItems map[uuid.UUID]string
	failCreate bool
}

func newMemCaseStore() *memCaseStore {
	return &memCaseStore{
		cases:      make(map[uuid.UUID]models.Case),
		boardItems: make(map[uuid.UUID]string),
	}
}

func (m *memCaseStore) put(c models.Case) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c
}

func (m *memCaseStore) CreateCase(_ context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errors.New("insert failed")
	}
	m.cases[c.ID] = *c
	return nil
}

func (m *memCaseStore) UpdateCase(_ context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[c.ID]; !ok {
		return errors.New("no such case")
	}
	m.cases[c.ID] = *c
	return nil
}

func (m *memCaseStore) GetCase(_ context.Context, id uuid.UUID) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCaseStore) GetCaseByProfile(_ context.Context, profileID uuid.UUID) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cases {
		if c.ProfileID == profileID {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCaseStore) ListCases(_ context.Context, filter models.CaseFilter) ([]*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Case
	for _, c := range m.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memCaseStore) ListOverdueCases(_ context.Context, now time.Time) ([]*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Case
	for _, c := range m.cases {
		if c.Overdue(now) {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileName < out[j].ProfileName })
	return out, nil
}

func (m *memCaseStore) SetProfileBoardItem(_ context.Context, profileID uuid.UUID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boardItems[profileID] = itemID
	return nil
}

func (m *memCaseStore) get(id uuid.UUID) models.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cases[id]
}

type statusChange struct {
	itemID, status, step string
}

type fakeBoard struct {
	mu       sync.Mutex
	disabled bool
	fail     error
	entries  []board.Entry
	statuses []statusChange
}

func (f *fakeBoard) Enabled() bool { return !f.disabled }

func (f *fakeBoard) CreateEntry(_ context.Context, e board.Entry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.entries = append(f.entries, e)
	return "item-" + e.ProfileName, nil
}

func (f *fakeBoard) SetStatus(_ context.Context, itemID, status, step string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusChange{itemID, status, step})
	return nil
}

type fakeMailer struct {
	mu         sync.Mutex
	disabled   bool
	failFor    map[string]bool
	requests   []string
	reports    []string
	reportCity []string
}

func (f *fakeMailer) Enabled() bool { return !f.disabled }

func (f *fakeMailer) ResponseDeadline() time.Duration { return 5 * 24 * time.Hour }

func (f *fakeMailer) SendAuthorizationRequest(_ context.Context, c *models.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[c.ProfileName] {
		return errors.New("smtp timeout")
	}
	f.requests = append(f.requests, c.Email)
	return nil
}

func (f *fakeMailer) SendHealthAuthorityReport(_ context.Context, c *models.Case, city string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[c.ProfileName] {
		return "", errors.New("smtp timeout")
	}
	f.reports = append(f.reports, c.ProfileName)
	f.reportCity = append(f.reportCity, city)
	return "gesundheitsamt@" + city + ".de", nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*models.DetectionEvent
}

func (p *capturePublisher) PublishDetection(_ context.Context, event *models.DetectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) types() []models.DetectionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.DetectionEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingRecorder struct {
	mu        sync.Mutex
	filed     int
	escalated int
	fetches   map[string]int
	runs      int
	runErrors int
}

func (r *countingRecorder) CaseFiled() {
	r.mu.Lock()
	r.filed++
	r.mu.Unlock()
}

func (r *countingRecorder) CaseEscalated() {
	r.mu.Lock()
	r.escalated++
	r.mu.Unlock()
}

func (r *countingRecorder) ScraperFetched(platform string, _ int, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetches == nil {
		r.fetches = make(map[string]int)
	}
	r.fetches[platform]++
}

func (r *countingRecorder) RunFinished(_ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	if err != nil {
		r.runErrors++
	}
}

type stubScraper struct {
	platform string
	disabled bool
	results  map[string][]models.RawProfile
	errs     map[string]error
	block    chan struct{}
	started  chan struct{}

	mu    sync.Mutex
	terms []string
}

func (s *stubScraper) Platform() string { return s.platform }

func (s *stubScraper) IsEnabled() bool { return !s.disabled }

func (s *stubScraper) Fetch(ctx context.Context, term string) ([]models.RawProfile, error) {
	s.mu.Lock()
	s.terms = append(s.terms, term)
	s.mu.Unlock()

	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.errs[term]; err != nil {
		return nil, err
	}
	return s.results[term], nil
}

func (s *stubScraper) fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.terms...)
}

// siteScraper brings its own targets
type siteScraper struct {
	stubScraper
	sites []string
}

func (s *siteScraper) Terms() []string { return s.sites }

type memSearchLogs struct {
	mu      sync.Mutex
	entries []models.SearchLog
}

func (m *memSearchLogs) CreateSearchLog(_ context.Context, entry *models.SearchLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

type fakeAnalyzer struct {
	mu         sync.Mutex
	batches    []models.PlatformBatch
	suspicious []models.SuspiciousProfile
}

func (f *fakeAnalyzer) AnalyzeScrapingResults(_ context.Context, batches []models.PlatformBatch) ([]models.SuspiciousProfile, *models.BatchReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = batches
	report := &models.BatchReport{Suspicious: len(f.suspicious)}
	for _, b := range batches {
		report.Analyzed += len(b.Profiles)
	}
	return f.suspicious, report
}

type memStatusStore struct {
	mu    sync.Mutex
	saved []RunStatus
}

func (m *memStatusStore) SaveRunStatus(_ context.Context, status any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, status.(RunStatus))
	return nil
}
