// Package progress tracks running comparison jobs in memory and fans their
// progress events out to subscribers.
package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/recordmatch/internal/match"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// StageInitializing is reported between Initialize and the first engine event.
const StageInitializing match.Stage = "initializing"

// DefaultRetention is how long finished jobs stay queryable.
const DefaultRetention = 5 * time.Minute

// subscriberBuffer bounds how many snapshots a slow subscriber may lag behind.
const subscriberBuffer = 16

// Snapshot is the externally visible state of a job.
type Snapshot struct {
	JobID   string      `json:"jobId"`
	Status  Status      `json:"status"`
	Stage   match.Stage `json:"stage"`
	Current int         `json:"current"`
	Total   int         `json:"total"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Done reports whether the job has finished.
func (s Snapshot) Done() bool {
	return s.Status == StatusComplete || s.Status == StatusError
}

type job struct {
	snap       Snapshot
	finishedAt time.Time
	subs       map[int]chan Snapshot
	nextSub    int
}

// Tracker holds jobs keyed by ID. It is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	jobs      map[string]*job
	retention time.Duration
	now       func() time.Time
}

// NewTracker creates a tracker that forgets finished jobs after retention.
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{
		jobs:      make(map[string]*job),
		retention: retention,
		now:       time.Now,
	}
}

// Initialize registers id as processing, replacing any previous job with
// the same ID.
func (t *Tracker) Initialize(id string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.jobs[id]; ok {
		closeSubs(old)
	}
	j := &job{
		snap: Snapshot{
			JobID:   id,
			Status:  StatusProcessing,
			Stage:   StageInitializing,
			Total:   match.ProgressTotal,
			Message: "Initializing comparison...",
		},
		subs: make(map[int]chan Snapshot),
	}
	t.jobs[id] = j
	zap.L().Debug("progress: job initialized", zap.String("job_id", id))
	return j.snap
}

// Update records a progress event. Events for unknown or finished jobs are
// ignored; ok reports whether the event was applied.
func (t *Tracker) Update(id string, e match.ProgressEvent) (ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, found := t.jobs[id]
	if !found || j.snap.Done() {
		return false
	}
	j.snap.Stage = e.Stage
	j.snap.Current = e.Current
	j.snap.Total = e.Total
	j.snap.Message = e.Message
	for _, ch := range j.subs {
		select {
		case ch <- j.snap:
		default:
		}
	}
	return true
}

// Complete marks the job finished successfully.
func (t *Tracker) Complete(id string) bool {
	return t.finish(id, StatusComplete, "")
}

// Fail marks the job finished with err.
func (t *Tracker) Fail(id string, err error) bool {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return t.finish(id, StatusError, msg)
}

func (t *Tracker) finish(id string, status Status, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok || j.snap.Done() {
		return false
	}
	j.snap.Status = status
	j.snap.Error = errMsg
	j.finishedAt = t.now()

	for _, ch := range j.subs {
		sendTerminal(ch, j.snap)
	}
	closeSubs(j)
	zap.L().Debug("progress: job finished", zap.String("job_id", id), zap.String("status", string(status)))
	return true
}

// sendTerminal delivers the final snapshot, dropping the oldest queued one
// if the subscriber's buffer is full.
func sendTerminal(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func closeSubs(j *job) {
	for k, ch := range j.subs {
		close(ch)
		delete(j.subs, k)
	}
}

// Get returns the current snapshot of a job.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snap, true
}

// Subscribe returns a channel that receives the current snapshot at once,
// then every later update. Intermediate updates are dropped when the
// subscriber falls behind; the terminal snapshot is always delivered and
// the channel is closed after it. cancel stops the subscription. ok is
// false for unknown jobs.
func (t *Tracker) Subscribe(id string) (updates <-chan Snapshot, cancel func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, found := t.jobs[id]
	if !found {
		return nil, func() {}, false
	}

	ch := make(chan Snapshot, subscriberBuffer)
	ch <- j.snap
	if j.snap.Done() {
		close(ch)
		return ch, func() {}, true
	}

	key := j.nextSub
	j.nextSub++
	j.subs[key] = ch

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if c, ok := j.subs[key]; ok {
				close(c)
				delete(j.subs, key)
			}
		})
	}
	return ch, cancel, true
}

// Reporter adapts the tracker to the engine's progress sink for job id.
func (t *Tracker) Reporter(id string) match.ProgressFunc {
	return func(e match.ProgressEvent) {
		t.Update(id, e)
	}
}

// Cleanup deletes finished jobs older than the retention period and returns
// how many were removed.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.retention)
	n := 0
	for id, j := range t.jobs {
		if j.snap.Done() && !j.finishedAt.After(cutoff) {
			delete(t.jobs, id)
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Cleanup(); n > 0 {
				zap.L().Debug("progress: cleaned up finished jobs", zap.Int("removed", n))
			}
		}
	}
}
