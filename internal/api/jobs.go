package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/internal/convert"
	"github.com/FocuswithJustin/versecorpus/internal/logging"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a parse running in the background.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"` // 0-100
	Request     convert.Request `json:"request"`
	Output      string          `json:"output"`
	Result      *JobResult      `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt string          `json:"completed_at,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
	data   []byte
}

// JobResult summarizes a finished job. The document itself is served by
// GET /api/jobs/:id/result.
type JobResult struct {
	Format      string        `json:"format"`
	Digest      corpus.Digest `json:"digest"`
	Stats       parser.Stats  `json:"stats"`
	Diagnostics int           `json:"diagnostics"`
	Bytes       int           `json:"bytes"`
}

// JobStore keeps jobs in memory. Once more than limit jobs have finished,
// the oldest finished ones are forgotten.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
	limit int

	outputs map[string]*parsed
}

// NewJobStore creates a job store.
func NewJobStore(limit int) *JobStore {
	return &JobStore{
		jobs:    make(map[string]*Job),
		outputs: make(map[string]*parsed),
		limit:   limit,
	}
}

// Create adds a pending job for data and returns a snapshot of it.
func (s *JobStore) Create(req convert.Request, output string, data []byte) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC().Format(time.RFC3339)
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Request:   req,
		Output:    output,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
		data:      data,
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.prune()
	return *job
}

// prune forgets the oldest finished jobs above the limit. s.mu is held.
func (s *JobStore) prune() {
	if s.limit <= 0 {
		return
	}
	finished := 0
	for _, id := range s.order {
		if s.jobs[id].Status.finished() {
			finished++
		}
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if finished > s.limit && s.jobs[id].Status.finished() {
			delete(s.jobs, id)
			delete(s.outputs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Get returns a snapshot of a job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Output returns the rendered document of a completed job.
func (s *JobStore) Output(id string) (*parsed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.outputs[id]
	return p, ok
}

// List returns snapshots of all jobs, oldest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, *s.jobs[id])
	}
	return jobs
}

// update changes a job that has not finished yet. It reports whether the
// job was still open.
func (s *JobStore) update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.finished() {
		return false
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if job.Status.finished() {
		job.CompletedAt = job.UpdatedAt
		job.data = nil
		job.cancel()
		s.prune()
	}
	return true
}

// complete stores the result of a job.
func (s *JobStore) complete(id string, p *parsed) bool {
	return s.update(id, func(j *Job) {
		j.Status = JobStatusCompleted
		j.Progress = 100
		j.Result = &JobResult{
			Format:      p.Format,
			Digest:      p.Digest,
			Stats:       p.Stats,
			Diagnostics: len(p.Diagnostics),
			Bytes:       len(p.output),
		}
		s.outputs[id] = p
	})
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	job, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if !s.update(id, func(j *Job) {
		j.Status = JobStatusCancelled
		j.Error = "Job cancelled by user"
	}) {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}
	return nil
}

// runJob parses the job data in the background and reports progress on
// the hub.
func (s *Server) runJob(job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.jobs.update(job.ID, func(j *Job) {
			j.Status = JobStatusRunning
			j.Progress = 10
		})
		s.hub.Broadcast(ProgressMessage{Type: "progress", Operation: "parse", Stage: "parsing", Progress: 10, Data: map[string]any{"job_id": job.ID}})

		p, err := parseDocument("", job.data, job.Request, job.Output)
		if job.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.jobs.update(job.ID, func(j *Job) {
				j.Status = JobStatusFailed
				j.Error = err.Error()
			})
			s.hub.Broadcast(ProgressMessage{Type: "error", Operation: "parse", Message: err.Error(), Data: map[string]any{"job_id": job.ID}})
			return
		}

		if s.jobs.complete(job.ID, p) {
			logging.ConversionComplete(job.ctx, "job:"+job.ID, job.Output,
				p.Stats.Books, p.Stats.Verses, p.Stats.Dropped,
				"from", p.Format,
				"problems", len(p.Diagnostics),
			)
			s.hub.Broadcast(ProgressMessage{Type: "complete", Operation: "parse", Progress: 100, Message: "parse complete", Data: map[string]any{
				"job_id": job.ID,
				"blake3": p.Digest.BLAKE3,
				"verses": p.Stats.Verses,
			}})
		}
	}()
}

// handleJobs handles GET /api/jobs (list) and POST /api/jobs (create).
// POST takes the same body and query as /api/parse.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := s.jobs.List()
		respondList(w, jobs, len(jobs))
	case http.MethodPost:
		req, output, err := requestFromQuery(r.URL.Query())
		if err != nil {
			respondErr(w, err)
			return
		}
		body, ok := s.readBody(w, r)
		if !ok {
			return
		}
		job := s.jobs.Create(req, output, body)
		s.runJob(job)
		respond(w, http.StatusAccepted, job)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

// handleJobByID handles GET /api/jobs/{id}, GET /api/jobs/{id}/result and
// DELETE /api/jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Job ID must be a UUID")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		job, ok := s.jobs.Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)
	case sub == "result" && r.Method == http.MethodGet:
		s.jobResult(w, id)
	case sub == "" && r.Method == http.MethodDelete:
		if err := s.jobs.Cancel(id); err != nil {
			if strings.Contains(err.Error(), "not found") {
				respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
				return
			}
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
	case sub != "" && sub != "result":
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

func (s *Server) jobResult(w http.ResponseWriter, id string) {
	job, ok := s.jobs.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}
	p, ok := s.jobs.Output(id)
	if !ok {
		respondError(w, http.StatusConflict, "NOT_READY", fmt.Sprintf("Job is %s", job.Status))
		return
	}
	w.Header().Set("Content-Type", p.contentType)
	w.Header().Set("X-Corpus-Blake3", p.Digest.BLAKE3)
	w.Header().Set("X-Source-Format", p.Format)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.output)
}
