package compare

import (
	"sort"
	"sync"
	"time"
)

// maxTrackedRuns bounds how many finished runs stay in memory.
const maxTrackedRuns = 100

// Run states reported by the HTTP API.
const (
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// RunState is the in-memory view of a run started over HTTP.
type RunState struct {
	RunID      string     `json:"run_id"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Report     *RunReport `json:"report,omitempty"`
}

// tracker holds runs started over HTTP and limits how many run at once.
type tracker struct {
	mu   sync.Mutex
	runs map[string]*RunState
	sem  chan struct{}
}

func newTracker(maxConcurrent int) *tracker {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &tracker{
		runs: make(map[string]*RunState),
		sem:  make(chan struct{}, maxConcurrent),
	}
}

// start registers a run if a slot is free.
func (t *tracker) start(runID string) bool {
	select {
	case t.sem <- struct{}{}:
	default:
		return false
	}
	t.mu.Lock()
	t.runs[runID] = &RunState{RunID: runID, State: StateRunning, StartedAt: time.Now()}
	t.mu.Unlock()
	return true
}

// finish records the outcome of a run and frees its slot.
func (t *tracker) finish(runID string, rep *RunReport, err error) {
	now := time.Now()
	t.mu.Lock()
	if st, ok := t.runs[runID]; ok {
		st.FinishedAt = &now
		st.Report = rep
		st.State = StateFinished
		if err != nil {
			st.Error = err.Error()
			if rep == nil {
				st.State = StateFailed
			}
		}
	}
	t.evict()
	t.mu.Unlock()
	<-t.sem
}

// evict drops the oldest finished runs beyond maxTrackedRuns. Callers hold mu.
func (t *tracker) evict() {
	if len(t.runs) <= maxTrackedRuns {
		return
	}
	var done []*RunState
	for _, st := range t.runs {
		if st.State != StateRunning {
			done = append(done, st)
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].StartedAt.Before(done[j].StartedAt) })
	for _, st := range done {
		if len(t.runs) <= maxTrackedRuns {
			return
		}
		delete(t.runs, st.RunID)
	}
}

// get returns a copy of the state of runID.
func (t *tracker) get(runID string) (RunState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.runs[runID]
	if !ok {
		return RunState{}, false
	}
	return *st, true
}

// list returns the tracked runs, newest first, without their reports.
func (t *tracker) list() []RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RunState, 0, len(t.runs))
	for _, st := range t.runs {
		cp := *st
		cp.Report = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
