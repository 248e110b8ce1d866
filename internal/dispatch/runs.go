package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapsend/zapsend/internal/recipients"
)

// Run is the observable state of one dispatch run. Registry hands out
// copies, so readers never race the run goroutine.
type Run struct {
	ID               string              `json:"id"`
	Mode             Mode                `json:"mode"`
	Subject          string              `json:"subject"`
	Sender           string              `json:"sender"`
	State            State               `json:"state"`
	Percent          float64             `json:"percent"`
	CurrentRecipient string              `json:"current_recipient,omitempty"`
	Outcomes         []Outcome           `json:"outcomes"`
	Summary          recipients.Summary  `json:"summary"`
	Error            string              `json:"error,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
}

// Registry tracks in-flight and completed runs in memory.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Create registers a new idle run and returns its ID.
func (r *Registry) Create(mode Mode, subject, sender string) string {
	run := &Run{
		ID:        uuid.New().String(),
		Mode:      mode,
		Subject:   subject,
		Sender:    sender,
		State:     StateIdle,
		Outcomes:  []Outcome{},
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
	return run.ID
}

// Get returns a snapshot of the run, or false if the ID is unknown.
func (r *Registry) Get(id string) (Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	snapshot := *run
	snapshot.Outcomes = make([]Outcome, len(run.Outcomes))
	copy(snapshot.Outcomes, run.Outcomes)
	return snapshot, true
}

// Update applies fn to the run under the registry lock.
func (r *Registry) Update(id string, fn func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		fn(run)
	}
}

// Progress records a progress step against the run.
func (r *Registry) Progress(id string, p Progress) {
	r.Update(id, func(run *Run) {
		run.State = p.State
		run.Percent = p.Percent
		run.CurrentRecipient = p.CurrentRecipient
	})
}

// Complete records the finished result against the run.
func (r *Registry) Complete(id string, result *RunResult) {
	r.Update(id, func(run *Run) {
		run.State = StateComplete
		run.Percent = 100
		run.CurrentRecipient = ""
		run.Outcomes = result.Outcomes
		run.Summary = result.Summary
		run.StartedAt = result.StartedAt
		run.FinishedAt = result.FinishedAt
	})
}

// Fail records a run that could not execute at all.
func (r *Registry) Fail(id string, err error) {
	r.Update(id, func(run *Run) {
		run.State = StateComplete
		run.Error = err.Error()
		run.FinishedAt = time.Now()
	})
}
