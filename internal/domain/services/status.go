package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"hyaluron-watch/internal/domain/models"
)

// RunState is the lifecycle state of a monitor run
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunStatus is a snapshot of the current or last monitor run
type RunStatus struct {
	RunID       string              `json:"run_id,omitempty"`
	State       RunState            `json:"state"`
	Running     bool                `json:"running"`
	Progress    int                 `json:"progress"`
	CurrentStep string              `json:"current_step,omitempty"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	Fetched     int                 `json:"fetched"`
	CasesFiled  int                 `json:"cases_filed"`
	Report      *models.BatchReport `json:"report,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// runTracker guards a RunStatus. Only one run may hold it at a time.
type runTracker struct {
	mu     sync.RWMutex
	status RunStatus
}

func newRunTracker() *runTracker {
	return &runTracker{status: RunStatus{State: RunStateIdle}}
}

// begin marks a new run as started. It returns false when a run is
// already in progress.
func (t *runTracker) begin(now time.Time) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Running {
		return "", false
	}

	id := uuid.NewString()
	t.status = RunStatus{
		RunID:       id,
		State:       RunStateRunning,
		Running:     true,
		CurrentStep: "starting",
		StartedAt:   &now,
	}
	return id, true
}

func (t *runTracker) step(name string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.CurrentStep = name
	if progress > t.status.Progress {
		t.status.Progress = min(progress, 100)
	}
}

func (t *runTracker) addFetched(n int) {
	t.mu.Lock()
	t.status.Fetched += n
	t.mu.Unlock()
}

func (t *runTracker) addCase() {
	t.mu.Lock()
	t.status.CasesFiled++
	t.mu.Unlock()
}

func (t *runTracker) finish(now time.Time, report *models.BatchReport, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Running = false
	t.status.FinishedAt = &now
	t.status.Report = report
	t.status.CurrentStep = ""
	if err != nil {
		t.status.State = RunStateFailed
		t.status.Error = err.Error()
		return
	}
	t.status.State = RunStateCompleted
	t.status.Progress = 100
}

// snapshot returns a copy safe to hand out
func (t *runTracker) snapshot() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
