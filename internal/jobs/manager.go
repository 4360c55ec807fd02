// Package jobs runs background work from a bounded queue on a fixed pool of workers.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-dupfinder/internal/errors"
	"github.com/gcbaptista/go-dupfinder/model"
)

// JobFunc is the body of a queued job.
type JobFunc func(ctx context.Context, job *model.Job) error

// CancelFunc is called for a queued job that is cancelled before any worker runs it.
type CancelFunc func(job *model.Job)

type task struct {
	jobID    string
	run      JobFunc
	onCancel CancelFunc
}

// Manager tracks jobs and feeds queued ones to its workers.
// Dispatchers never wait on a job; they observe it through GetJob or through
// whatever state the job body writes.
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*model.Job
	queue   chan task
	workers int
	metrics *JobMetrics

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// NewManager creates a manager with the given worker count and queue capacity.
func NewManager(workers, queueSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:     make(map[string]*model.Job),
		queue:    make(chan task, queueSize),
		workers:  workers,
		metrics:  NewJobMetrics(),
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

// Start launches the workers and the hourly cleanup routine.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	go m.cleanupRoutine()

	log.Printf("Job manager started with %d workers (queue capacity %d)", m.workers, cap(m.queue))
}

// Stop cancels running jobs, waits for the workers to exit and cancels every
// job still queued, running its CancelFunc.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.cancel()
		m.wg.Wait()

		for {
			select {
			case t := <-m.queue:
				m.cancelTask(t)
			default:
				log.Printf("Job manager stopped")
				return
			}
		}
	})
}

// CreateJob registers a pending job for a tracking record and returns its ID.
func (m *Manager) CreateJob(jobType model.JobType, recordID string, metadata map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    model.JobStatusPending,
		RecordID:  recordID,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}

	m.jobs[job.ID] = job
	m.metrics.RecordJobCreated(jobType)
	log.Printf("Created job %s (type: %s) for record '%s'", job.ID, job.Type, job.RecordID)
	return job.ID
}

// Enqueue places a pending job on the work queue without blocking.
// A full queue fails the job with errors.ErrQueueFull.
func (m *Manager) Enqueue(jobID string, run JobFunc) error {
	return m.EnqueueWithCancel(jobID, run, nil)
}

// EnqueueWithCancel is Enqueue with a CancelFunc that runs if the manager
// stops while the job is still queued. It does not run when Enqueue itself
// returns an error.
func (m *Manager) EnqueueWithCancel(jobID string, run JobFunc, onCancel CancelFunc) error {
	m.mu.RLock()
	job, exists := m.jobs[jobID]
	var status model.JobStatus
	if exists {
		status = job.Status
	}
	m.mu.RUnlock()

	if !exists {
		return errors.NewJobNotFoundError(jobID)
	}
	if status != model.JobStatusPending {
		return fmt.Errorf("job with ID '%s' is not in pending status (current: %s)", jobID, status)
	}

	select {
	case <-m.stopChan:
		m.updateJobStatus(jobID, model.JobStatusCancelled, "job manager shutting down")
		return fmt.Errorf("job manager is shutting down")
	default:
	}

	select {
	case m.queue <- task{jobID: jobID, run: run, onCancel: onCancel}:
		return nil
	default:
		m.updateJobStatus(jobID, model.JobStatusFailed, errors.ErrQueueFull.Error())
		m.metrics.RecordJobRejected()
		return fmt.Errorf("enqueue job %s: %w", jobID, errors.ErrQueueFull)
	}
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	return copyJob(job), nil
}

// ListJobs returns the record's jobs, oldest first, optionally filtered by status.
func (m *Manager) ListJobs(recordID string, status *model.JobStatus) []*model.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*model.Job
	for _, job := range m.jobs {
		if job.RecordID != recordID {
			continue
		}
		if status != nil && job.Status != *status {
			continue
		}
		result = append(result, copyJob(job))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// UpdateJobProgress updates the progress of a running job.
func (m *Manager) UpdateJobProgress(jobID string, current, total int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	if job.Progress == nil {
		job.Progress = &model.JobProgress{}
	}
	job.Progress.Current = current
	job.Progress.Total = total
	job.Progress.Message = message
}

// QueueDepth returns the number of jobs waiting for a worker.
func (m *Manager) QueueDepth() int {
	return len(m.queue)
}

func (m *Manager) worker(n int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopChan:
			return
		case t := <-m.queue:
			select {
			case <-m.stopChan:
				m.cancelTask(t)
				return
			default:
			}
			m.run(n, t)
		}
	}
}

func (m *Manager) cancelTask(t task) {
	m.mu.Lock()
	job, exists := m.jobs[t.jobID]
	if !exists || job.Status != model.JobStatusPending {
		m.mu.Unlock()
		return
	}
	recordID := job.RecordID
	m.mu.Unlock()

	m.updateJobStatus(t.jobID, model.JobStatusCancelled, "job manager shutting down")
	log.Printf("Cancelled queued job %s for record '%s'", t.jobID, recordID)
	if t.onCancel != nil {
		snapshot, err := m.GetJob(t.jobID)
		if err == nil {
			t.onCancel(snapshot)
		}
	}
}

func (m *Manager) run(worker int, t task) {
	m.mu.Lock()
	job, exists := m.jobs[t.jobID]
	if !exists || job.Status != model.JobStatusPending {
		m.mu.Unlock()
		return
	}
	job.Status = model.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	m.metrics.RecordJobStatusChange(model.JobStatusPending, model.JobStatusRunning)
	snapshot := copyJob(job)
	m.mu.Unlock()

	startTime := time.Now()
	err := t.run(m.ctx, snapshot)
	executionTime := time.Since(startTime)

	if err != nil {
		m.updateJobStatus(t.jobID, model.JobStatusFailed, err.Error())
		m.metrics.RecordJobFailed(snapshot.Type)
		log.Printf("Job %s failed on worker %d after %v: %v", t.jobID, worker, executionTime, err)
		return
	}
	m.updateJobStatus(t.jobID, model.JobStatusCompleted, "")
	m.metrics.RecordJobCompleted(snapshot.Type, executionTime)
	log.Printf("Job %s completed on worker %d in %v", t.jobID, worker, executionTime)
}

func (m *Manager) updateJobStatus(jobID string, status model.JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}

	oldStatus := job.Status
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if status == model.JobStatusCompleted || status == model.JobStatusFailed || status == model.JobStatusCancelled {
		now := time.Now()
		job.CompletedAt = &now
	}

	m.metrics.RecordJobStatusChange(oldStatus, status)
}

func (m *Manager) cleanupRoutine() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanupOldJobs(24 * time.Hour)
		case <-m.stopChan:
			return
		}
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	cleaned := 0
	for jobID, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, jobID)
			cleaned++
		}
	}
	if cleaned > 0 {
		log.Printf("Cleaned up %d old jobs", cleaned)
	}
}

// GetMetrics returns current job performance metrics.
func (m *Manager) GetMetrics() JobMetricsData {
	data := m.metrics.GetMetrics()
	data.QueueDepth = m.QueueDepth()
	return data
}

// GetJobSuccessRate returns the overall job success rate.
func (m *Manager) GetJobSuccessRate() float64 {
	return m.metrics.GetSuccessRate()
}

// GetCurrentWorkload returns the number of pending and running jobs.
func (m *Manager) GetCurrentWorkload() int64 {
	return m.metrics.GetCurrentWorkload()
}

func copyJob(job *model.Job) *model.Job {
	jobCopy := *job
	if job.Progress != nil {
		progressCopy := *job.Progress
		jobCopy.Progress = &progressCopy
	}
	if job.Metadata != nil {
		jobCopy.Metadata = make(map[string]string, len(job.Metadata))
		for k, v := range job.Metadata {
			jobCopy.Metadata[k] = v
		}
	}
	return &jobCopy
}
