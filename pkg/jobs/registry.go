package jobs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Status is the lifecycle state of a processing job.
type Status string

const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Phase is the per-file processing stage.
type Phase string

const (
	PhaseWaiting      Phase = "waiting"
	PhaseConverting   Phase = "docling"
	PhaseChunking     Phase = "chunking"
	PhaseExtracting   Phase = "kg_extraction"
	PhaseIndexing     Phase = "indexing"
	PhaseFileComplete Phase = "completed"
	PhaseFileError    Phase = "error"
)

// FileProgress tracks one file inside a job.
type FileProgress struct {
	Index       int        `json:"index"`
	FileName    string     `json:"filename"`
	FilePath    string     `json:"filepath,omitempty"`
	Phase       Phase      `json:"phase"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Job is a snapshot of one ingestion run.
type Job struct {
	ID              string         `json:"processing_id"`
	Status          Status         `json:"status"`
	Message         string         `json:"message,omitempty"`
	Progress        int            `json:"progress"`
	TotalFiles      int            `json:"total_files"`
	FilesCompleted  int            `json:"files_completed"`
	CurrentFile     string         `json:"current_file,omitempty"`
	CurrentPhase    Phase          `json:"current_phase,omitempty"`
	EstimatedRemain string         `json:"estimated_time_remaining,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Files           []FileProgress `json:"files,omitempty"`
}

// Patch is a partial job update. Nil fields are left untouched.
type Patch struct {
	Status          *Status
	Message         *string
	Progress        *int
	TotalFiles      *int
	FilesCompleted  *int
	CurrentFile     *string
	CurrentPhase    *Phase
	EstimatedRemain *string
}

func str(s string) *string { return &s }
func num(n int) *int       { return &n }
func st(s Status) *Status  { return &s }
func ph(p Phase) *Phase    { return &p }

// Convenience patch constructors used by the pipeline.
func PatchStatus(s Status, msg string) Patch { return Patch{Status: st(s), Message: str(msg)} }
func PatchProgress(p int, msg string) Patch  { return Patch{Progress: num(p), Message: str(msg)} }
func PatchPhase(file string, phase Phase) Patch {
	return Patch{CurrentFile: str(file), CurrentPhase: ph(phase)}
}
func PatchETA(eta string) Patch     { return Patch{EstimatedRemain: str(eta)} }
func PatchCompleted(done int) Patch { return Patch{FilesCompleted: num(done)} }

const retention = 24 * time.Hour

// Registry is the in-memory job table. All methods are safe for
// concurrent use.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create registers a new job and returns its short token.
func (r *Registry) Create(totalFiles int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	now := r.now()
	job := &Job{
		ID:         id,
		Status:     StatusStarted,
		Message:    "Processing started",
		TotalFiles: totalFiles,
		StartedAt:  now,
		UpdatedAt:  now,
		Files:      make([]FileProgress, totalFiles),
	}
	for i := range job.Files {
		job.Files[i] = FileProgress{Index: i, Phase: PhaseWaiting}
	}
	r.jobs[id] = job
	return id
}

// evictLocked drops terminal jobs older than the retention window.
func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-retention)
	for id, j := range r.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

// Get returns a copy of the job's current state.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, domain.ErrJobNotFound
	}
	return snapshot(job), nil
}

// Update applies a patch. Progress is monotonic: a lower value than the
// current one is ignored. Updates to a terminal job are dropped.
func (r *Registry) Update(id string, p Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil
	}

	if p.Status != nil {
		job.Status = *p.Status
		if *p.Status == StatusCompleted {
			job.Progress = 100
		}
	}
	if p.Message != nil {
		job.Message = *p.Message
	}
	if p.Progress != nil && *p.Progress > job.Progress {
		job.Progress = *p.Progress
	}
	if p.TotalFiles != nil {
		job.TotalFiles = *p.TotalFiles
	}
	if p.FilesCompleted != nil {
		job.FilesCompleted = *p.FilesCompleted
	}
	if p.CurrentFile != nil {
		job.CurrentFile = *p.CurrentFile
	}
	if p.CurrentPhase != nil {
		job.CurrentPhase = *p.CurrentPhase
	}
	if p.EstimatedRemain != nil {
		job.EstimatedRemain = *p.EstimatedRemain
	}
	job.UpdatedAt = r.now()
	return nil
}

// UpdateFile mutates one file record through fn.
func (r *Registry) UpdateFile(id string, index int, fn func(*FileProgress)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if index < 0 || index >= len(job.Files) {
		return domain.ErrInvalidInput
	}
	fn(&job.Files[index])
	job.UpdatedAt = r.now()
	return nil
}

// Cancel requests cooperative cancellation. Only running jobs can be
// cancelled; cancelling a terminal job is a no-op error.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return domain.ErrInvalidInput
	}
	job.Status = StatusCancelled
	job.Message = "Processing cancelled by user"
	job.UpdatedAt = r.now()
	return nil
}

// IsCancelled is the poll point used inside long-running phases.
func (r *Registry) IsCancelled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	return ok && job.Status == StatusCancelled
}

// Stream emits job snapshots on every tick until the job reaches a
// terminal state or the context ends. The final snapshot is always
// delivered before the channel closes.
func (r *Registry) Stream(ctx context.Context, id string, interval time.Duration) (<-chan Job, error) {
	if _, err := r.Get(id); err != nil {
		return nil, err
	}

	ch := make(chan Job, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			job, err := r.Get(id)
			if err != nil {
				return
			}
			select {
			case ch <- job:
			case <-ctx.Done():
				return
			}
			if job.Status.Terminal() {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func snapshot(job *Job) Job {
	out := *job
	out.Files = make([]FileProgress, len(job.Files))
	copy(out.Files, job.Files)
	return out
}
