package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyaluron-watch/internal/board"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/domain/services/detection"
	"hyaluron-watch/pkg/logger"
)

var fixedNow = time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)

type caseFixture struct {
	store     *memCaseStore
	board     *fakeBoard
	mailer    *fakeMailer
	publisher *capturePublisher
	recorder  *countingRecorder
	svc       *CaseService
}

func newCaseFixture(t *testing.T) *caseFixture {
	t.Helper()

	patterns, err := detection.DefaultPatterns()
	require.NoError(t, err)

	f := &caseFixture{
		store:     newMemCaseStore(),
		board:     &fakeBoard{},
		mailer:    &fakeMailer{failFor: map[string]bool{}},
		publisher: &capturePublisher{},
		recorder:  &countingRecorder{},
	}
	f.svc = NewCaseService(CaseDeps{
		Store:     f.store,
		Board:     f.board,
		Mailer:    f.mailer,
		Publisher: f.publisher,
		Recorder:  f.recorder,
		Locations: detection.NewExtractor(patterns, 0, logger.NewNop()),
	}, logger.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func suspiciousProfile(name string) models.SuspiciousProfile {
	id := uuid.New()
	return models.SuspiciousProfile{
		RawProfile: models.RawProfile{
			Platform:    "Instagram",
			ProfileName: name,
			ProfileLink: "https://instagram.com/" + name,
			Description: "Hyaluron Pen Behandlung ab 79€",
			PostText:    "#hyaluronpen Termine frei",
			Email:       name + "@example.de",
			Location:    "Hauptstraße 5, 10115 Berlin",
			Analysis:    &models.RiskAssessment{RiskScore: 98.46},
		},
		ProfileID:   &id,
		Screenshots: []*models.Screenshot{{FilePath: "screenshots/" + name + ".png"}},
	}
}

func TestFileCase(t *testing.T) {
	f := newCaseFixture(t)
	profile := suspiciousProfile("beauty_by_anna")

	c, err := f.svc.FileCase(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, models.CaseStatusFiled, c.Status)
	assert.Equal(t, *profile.ProfileID, c.ProfileID)
	assert.Equal(t, "item-beauty_by_anna", c.BoardItemID)
	assert.Equal(t, "screenshots/beauty_by_anna.png", c.ScreenshotPath)
	assert.Equal(t, 98.46, c.RiskScore)
	assert.Equal(t, fixedNow, c.CreatedAt)

	require.Len(t, f.board.entries, 1)
	entry := f.board.entries[0]
	assert.Equal(t, "#hyaluronpen Termine frei", entry.PostText)
	assert.Equal(t, "screenshots/beauty_by_anna.png", entry.ScreenshotPath)

	assert.Equal(t, "item-beauty_by_anna", f.store.boardItems[*profile.ProfileID])
	assert.Equal(t, models.CaseStatusFiled, f.store.get(c.ID).Status)
	assert.Equal(t, []models.DetectionEventType{models.EventCaseFiled}, f.publisher.types())
	assert.Equal(t, c.ID.String(), f.publisher.events[0].CaseID)
	assert.Equal(t, 1, f.recorder.filed)
}

func TestFileCaseIsIdempotentPerProfile(t *testing.T) {
	f := newCaseFixture(t)
	profile := suspiciousProfile("beauty_by_anna")

	first, err := f.svc.FileCase(context.Background(), profile)
	require.NoError(t, err)
	second, err := f.svc.FileCase(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.board.entries, 1)
	assert.Equal(t, 1, f.recorder.filed)
}

func TestFileCaseRequiresPersistedProfile(t *testing.T) {
	f := newCaseFixture(t)
	profile := suspiciousProfile("x")
	profile.ProfileID = nil

	_, err := f.svc.FileCase(context.Background(), profile)
	assert.ErrorIs(t, err, ErrProfileNotPersisted)
}

func TestFileCaseBoardFailureStoresNothing(t *testing.T) {
	f := newCaseFixture(t)
	f.board.fail = board.ErrCircuitOpen

	_, err := f.svc.FileCase(context.Background(), suspiciousProfile("x"))
	require.ErrorIs(t, err, board.ErrCircuitOpen)

	cases, err := f.svc.List(context.Background(), models.CaseFilter{})
	require.NoError(t, err)
	assert.Empty(t, cases)
	assert.Empty(t, f.publisher.types())
}

func TestFileCaseStoreFailureLogsBoardItem(t *testing.T) {
	f := newCaseFixture(t)
	f.store.failCreate = true
	var buf bytes.Buffer
	f.svc.logger = &logger.Logger{Logger: zerolog.New(&buf)}

	_, err := f.svc.FileCase(context.Background(), suspiciousProfile("beauty_by_anna"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")

	require.Len(t, f.board.entries, 1)
	assert.Contains(t, buf.String(), `"board_item_id":"item-beauty_by_anna"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Empty(t, f.store.boardItems)
	assert.Empty(t, f.publisher.types())
	assert.Zero(t, f.recorder.filed)
}

func TestFileCaseWithoutBoard(t *testing.T) {
	f := newCaseFixture(t)
	f.board.disabled = true

	c, err := f.svc.FileCase(context.Background(), suspiciousProfile("x"))
	require.NoError(t, err)
	assert.Empty(t, c.BoardItemID)
	assert.Empty(t, f.store.boardItems)
}

func TestRequestAuthorization(t *testing.T) {
	f := newCaseFixture(t)
	filed, err := f.svc.FileCase(context.Background(), suspiciousProfile("beauty_by_anna"))
	require.NoError(t, err)

	c, err := f.svc.RequestAuthorization(context.Background(), filed.ID)
	require.NoError(t, err)

	assert.Equal(t, models.CaseStatusAuthorizationRequested, c.Status)
	require.NotNil(t, c.Deadline)
	assert.Equal(t, fixedNow.Add(5*24*time.Hour), *c.Deadline)
	assert.Equal(t, fixedNow, *c.AuthorizationRequestedAt)
	assert.Equal(t, []string{"beauty_by_anna@example.de"}, f.mailer.requests)
	assert.Equal(t, []statusChange{{"item-beauty_by_anna", board.StatusRequested, board.StepRequestSent}}, f.board.statuses)
	assert.Equal(t, models.CaseStatusAuthorizationRequested, f.store.get(c.ID).Status)
}

func TestRequestAuthorizationMailerFailureKeepsStatus(t *testing.T) {
	f := newCaseFixture(t)
	f.mailer.failFor["x"] = true
	filed, err := f.svc.FileCase(context.Background(), suspiciousProfile("x"))
	require.NoError(t, err)

	_, err = f.svc.RequestAuthorization(context.Background(), filed.ID)
	require.Error(t, err)

	stored := f.store.get(filed.ID)
	assert.Equal(t, models.CaseStatusFiled, stored.Status)
	assert.Nil(t, stored.Deadline)
	assert.Empty(t, f.board.statuses)
}

func TestRequestAuthorizationErrors(t *testing.T) {
	f := newCaseFixture(t)

	_, err := f.svc.RequestAuthorization(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrCaseNotFound)

	reported := models.Case{ID: uuid.New(), Status: models.CaseStatusReported}
	f.store.put(reported)
	_, err = f.svc.RequestAuthorization(context.Background(), reported.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	filed := models.Case{ID: uuid.New(), Status: models.CaseStatusFiled}
	f.store.put(filed)
	f.mailer.disabled = true
	_, err = f.svc.RequestAuthorization(context.Background(), filed.ID)
	assert.ErrorIs(t, err, ErrMailerDisabled)
}

func overdueCase(name string, deadline time.Time) models.Case {
	requested := deadline.Add(-5 * 24 * time.Hour)
	return models.Case{
		ID:                       uuid.New(),
		ProfileName:              name,
		Platform:                 "Instagram",
		Location:                 "Studio am Marktplatz, München",
		Status:                   models.CaseStatusAuthorizationRequested,
		BoardItemID:              "item-" + name,
		AuthorizationRequestedAt: &requested,
		Deadline:                 &deadline,
	}
}

func TestCheckDeadlines(t *testing.T) {
	f := newCaseFixture(t)
	overdue := overdueCase("late_studio", fixedNow.Add(-time.Hour))
	pending := overdueCase("pending_studio", fixedNow.Add(time.Hour))
	f.store.put(overdue)
	f.store.put(pending)

	escalated, err := f.svc.CheckDeadlines(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Len(t, escalated, 1)

	c := escalated[0]
	assert.Equal(t, overdue.ID, c.ID)
	assert.Equal(t, models.CaseStatusReported, c.Status)
	assert.Equal(t, "gesundheitsamt@München.de", c.AuthorityEmail)
	assert.Equal(t, []string{"München"}, f.mailer.reportCity)

	assert.Equal(t, models.CaseStatusReported, f.store.get(overdue.ID).Status)
	assert.Equal(t, models.CaseStatusAuthorizationRequested, f.store.get(pending.ID).Status)
	assert.Equal(t, []statusChange{{"item-late_studio", board.StatusReported, board.StepAuthorityMsg}}, f.board.statuses)
	assert.Equal(t, []models.DetectionEventType{models.EventCaseEscalated}, f.publisher.types())
	assert.Equal(t, 1, f.recorder.escalated)
}

func TestCheckDeadlinesContinuesPastFailures(t *testing.T) {
	f := newCaseFixture(t)
	f.mailer.failFor["a_studio"] = true
	f.store.put(overdueCase("a_studio", fixedNow.Add(-time.Hour)))
	ok := overdueCase("b_studio", fixedNow.Add(-time.Hour))
	f.store.put(ok)

	escalated, err := f.svc.CheckDeadlines(context.Background(), fixedNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp timeout")
	require.Len(t, escalated, 1)
	assert.Equal(t, ok.ID, escalated[0].ID)
}

func TestCheckDeadlinesWithoutMailer(t *testing.T) {
	f := newCaseFixture(t)
	f.mailer.disabled = true
	c := overdueCase("late_studio", fixedNow.Add(-time.Hour))
	f.store.put(c)

	escalated, err := f.svc.CheckDeadlines(context.Background(), fixedNow)
	require.ErrorIs(t, err, ErrMailerDisabled)
	assert.Empty(t, escalated)
	assert.Empty(t, f.mailer.reportCity)
	assert.Equal(t, models.CaseStatusAuthorizationRequested, f.store.get(c.ID).Status)
}

func TestCaseLifecycle(t *testing.T) {
	f := newCaseFixture(t)
	c := overdueCase("x", fixedNow.Add(time.Hour))
	f.store.put(c)

	responded, err := f.svc.MarkResponded(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusResponded, responded.Status)
	assert.Equal(t, fixedNow, *responded.RespondedAt)

	_, err = f.svc.MarkResponded(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	closed, err := f.svc.Close(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseStatusClosed, closed.Status)

	_, err = f.svc.Close(context.Background(), c.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestCity(t *testing.T) {
	f := newCaseFixture(t)

	tests := []struct {
		name string
		c    models.Case
		want string
	}{
		{"city in location", models.Case{Location: "Hauptstraße 5, 10115 Berlin"}, "Berlin"},
		{"city in notes", models.Case{Location: "Hauptstraße 5", Notes: "Studio in Hamburg"}, "Hamburg"},
		{"raw location fallback", models.Case{Location: " Kleinstadt "}, "Kleinstadt"},
		{"nothing", models.Case{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.svc.City(&tt.c))
		})
	}
}
