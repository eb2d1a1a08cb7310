package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"catalog-adaptation-service/internal/ingest"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/repository"
)

// ProgressStore holds the live progress of running jobs
type ProgressStore interface {
	Set(ctx context.Context, jobID uuid.UUID, progress models.BatchProgress) error
	Get(ctx context.Context, jobID uuid.UUID) (models.BatchProgress, bool, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}

// EventPublisher announces job lifecycle changes
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, job *models.AdaptationJob) error
}

// JobServiceConfig configures background adaptation jobs
type JobServiceConfig struct {
	JobTimeout time.Duration
	// FlushEvery is the number of items between progress writes to the store
	FlushEvery int
}

// DefaultJobServiceConfig returns the default job configuration
func DefaultJobServiceConfig() JobServiceConfig {
	return JobServiceConfig{
		JobTimeout: 30 * time.Minute,
		FlushEvery: 10,
	}
}

// SubmitRequest describes a batch to adapt in the background
type SubmitRequest struct {
	TenantID     string
	Marketplace  models.MarketplaceKey
	SourceFile   string
	Records      []models.ProductRecord
	IngestErrors []ingest.RowError
}

// JobService runs adaptation batches as persisted background jobs
type JobService struct {
	adapter   *AdaptationService
	store     repository.JobStore
	progress  ProgressStore
	publisher EventPublisher
	limiter   *JobLimiter
	config    JobServiceConfig
	logger    *logrus.Entry

	mu         sync.Mutex
	activeJobs map[uuid.UUID]context.CancelFunc
	done       map[uuid.UUID]chan struct{}
}

// NewJobService creates a new job service. progress and publisher may be nil.
func NewJobService(
	adapter *AdaptationService,
	store repository.JobStore,
	progress ProgressStore,
	publisher EventPublisher,
	limiter *JobLimiter,
	cfg JobServiceConfig,
	logger *logrus.Logger,
) *JobService {
	if limiter == nil {
		limiter = NewJobLimiter(nil)
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 10
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	return &JobService{
		adapter:    adapter,
		store:      store,
		progress:   progress,
		publisher:  publisher,
		limiter:    limiter,
		config:     cfg,
		logger:     logger.WithField("component", "jobs"),
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
		done:       make(map[uuid.UUID]chan struct{}),
	}
}

// Submit persists a new job and starts it in the background
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*models.AdaptationJob, error) {
	if _, err := s.adapter.Template(req.Marketplace); err != nil {
		return nil, err
	}
	if len(req.Records) == 0 {
		return nil, ErrEmptyBatch
	}

	release, ok := s.limiter.TryAcquire(req.TenantID, string(req.Marketplace))
	if !ok {
		return nil, fmt.Errorf("%w: tenant=%s", ErrTooManyJobs, req.TenantID)
	}

	job := &models.AdaptationJob{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		Marketplace: req.Marketplace,
		SourceFile:  req.SourceFile,
		Status:      models.JobStatusPending,
		TotalItems:  len(req.Records),
		Progress:    models.BatchProgress{Total: len(req.Records), CurrentStep: "Queued"}.JSON(),
	}
	if len(req.IngestErrors) > 0 {
		data, err := json.Marshal(req.IngestErrors)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to encode ingest errors: %w", err)
		}
		job.IngestErrors = datatypes.JSON(data)
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		release()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobCtx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	done := make(chan struct{})
	s.mu.Lock()
	s.activeJobs[job.ID] = cancel
	s.done[job.ID] = done
	s.mu.Unlock()

	running := *job
	go s.runJob(jobCtx, &running, req.Records, release)

	s.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"tenant":      job.TenantID,
		"marketplace": job.Marketplace,
		"items":       job.TotalItems,
	}).Info("Adaptation job submitted")
	return job, nil
}

// GetJob returns a job of the tenant
func (s *JobService) GetJob(ctx context.Context, tenantID string, id uuid.UUID) (*models.AdaptationJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.TenantID != tenantID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs lists the jobs of a tenant
func (s *JobService) ListJobs(ctx context.Context, tenantID string, opts models.JobListOptions) ([]models.AdaptationJob, int64, error) {
	opts.TenantID = tenantID
	return s.store.ListJobs(ctx, opts)
}

// Progress returns the live progress of a job, falling back to the stored counters
func (s *JobService) Progress(ctx context.Context, tenantID string, id uuid.UUID) (models.BatchProgress, error) {
	job, err := s.GetJob(ctx, tenantID, id)
	if err != nil {
		return models.BatchProgress{}, err
	}
	if s.progress != nil && !job.Status.IsTerminal() {
		progress, ok, err := s.progress.Get(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("job_id", id).Warn("Failed to read cached progress")
		} else if ok {
			return progress, nil
		}
	}

	progress := models.BatchProgress{
		Total:      job.TotalItems,
		Processed:  job.ProcessedItems,
		Successful: job.SuccessfulItems,
		Failed:     job.FailedItems,
	}
	if step, ok := job.Progress["currentStep"].(string); ok {
		progress.CurrentStep = step
	}
	if job.TotalItems > 0 {
		progress.Percentage = float64(job.ProcessedItems) / float64(job.TotalItems) * 100
	}
	return progress, nil
}

// GetResults returns the stored item results of a job in input order
func (s *JobService) GetResults(ctx context.Context, tenantID string, id uuid.UUID, limit, offset int) ([]models.AdaptationResult, int64, error) {
	if _, err := s.GetJob(ctx, tenantID, id); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.ListItems(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	results := make([]models.AdaptationResult, 0, len(items))
	for _, item := range items {
		var result models.AdaptationResult
		if err := json.Unmarshal(item.Result, &result); err != nil {
			return nil, 0, fmt.Errorf("failed to decode result at position %d: %w", item.Position, err)
		}
		results = append(results, result)
	}
	return results, total, nil
}

// Cancel stops a running job. The job ends in CANCELLED once the current
// item finishes.
func (s *JobService) Cancel(ctx context.Context, tenantID string, id uuid.UUID) error {
	if _, err := s.GetJob(ctx, tenantID, id); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, exists := s.activeJobs[id]
	s.mu.Unlock()
	if !exists {
		return ErrJobNotRunning
	}

	cancel()
	s.logger.WithFields(logrus.Fields{"job_id": id, "tenant": tenantID}).Info("Adaptation job cancel requested")
	return nil
}

// Wait blocks until a running job has finished or ctx is done
func (s *JobService) Wait(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	done, exists := s.done[id]
	s.mu.Unlock()
	if !exists {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every running job
func (s *JobService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.activeJobs {
		cancel()
	}
}

// ActiveJobCount returns the number of jobs running in this process
func (s *JobService) ActiveJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeJobs)
}

func (s *JobService) runJob(ctx context.Context, job *models.AdaptationJob, records []models.ProductRecord, release func()) {
	defer func() {
		release()
		s.mu.Lock()
		if cancel, ok := s.activeJobs[job.ID]; ok {
			cancel()
		}
		delete(s.activeJobs, job.ID)
		done := s.done[job.ID]
		delete(s.done, job.ID)
		s.mu.Unlock()
		if done != nil {
			close(done)
		}
	}()

	log := s.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"tenant":      job.TenantID,
		"marketplace": job.Marketplace,
	})

	now := time.Now()
	job.Status = models.JobStatusRunning
	job.StartedAt = &now
	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		log.WithError(err).Error("Failed to mark job running")
	}
	s.publish(job)
	log.Info("Adaptation job started")

	var (
		last          models.BatchProgress
		confidenceSum int
		successful    int
	)

	onResult := func(index int, result models.AdaptationResult) {
		if result.Succeeded() {
			confidenceSum += result.Confidence
			successful++
		}
		data, err := json.Marshal(result)
		if err != nil {
			log.WithError(err).WithField("index", index).Warn("Failed to encode item result")
			return
		}
		item := &models.AdaptationItem{
			JobID:      job.ID,
			Position:   index,
			SKU:        result.SKU,
			Confidence: result.Confidence,
			IssueCount: len(result.Issues),
			Result:     datatypes.JSON(data),
		}
		if err := s.store.CreateItem(context.Background(), item); err != nil {
			log.WithError(err).WithField("index", index).Warn("Failed to store item result")
		}
	}

	onProgress := func(progress models.BatchProgress) {
		last = progress
		if s.progress != nil {
			if err := s.progress.Set(context.Background(), job.ID, progress); err != nil {
				log.WithError(err).Debug("Failed to cache progress")
			}
		}
		if progress.Processed%s.config.FlushEvery == 0 || progress.Processed == progress.Total {
			if err := s.store.UpdateJobProgress(context.Background(), job.ID, progress); err != nil {
				log.WithError(err).Warn("Failed to store progress")
			}
		}
	}

	batchErr := s.adapter.StreamBatch(ctx, records, job.Marketplace, onProgress, onResult)

	job.ProcessedItems = last.Processed
	job.SuccessfulItems = last.Successful
	job.FailedItems = last.Failed
	if successful > 0 {
		job.AvgConfidence = math.Round(float64(confidenceSum)/float64(successful)*100) / 100
	}

	completed := time.Now()
	job.CompletedAt = &completed
	switch {
	case batchErr == nil:
		job.Status = models.JobStatusCompleted
		last.CurrentStep = "Completed"
	case errors.Is(batchErr, context.Canceled):
		job.Status = models.JobStatusCancelled
		job.ErrorMessage = "Cancelled by user"
		last.CurrentStep = "Cancelled"
	case errors.Is(batchErr, context.DeadlineExceeded):
		job.Status = models.JobStatusFailed
		job.ErrorMessage = fmt.Sprintf("Job exceeded timeout of %s", s.config.JobTimeout)
		last.CurrentStep = "Timed out"
	default:
		job.Status = models.JobStatusFailed
		job.ErrorMessage = batchErr.Error()
		last.CurrentStep = "Failed"
	}
	last.ETA = 0
	job.Progress = last.JSON()

	if err := s.store.UpdateJob(context.Background(), job); err != nil {
		log.WithError(err).Error("Failed to store final job state")
	}
	if s.progress != nil {
		_ = s.progress.Delete(context.Background(), job.ID)
	}
	s.publish(job)

	log.WithFields(logrus.Fields{
		"status":         job.Status,
		"processed":      job.ProcessedItems,
		"successful":     job.SuccessfulItems,
		"failed":         job.FailedItems,
		"avg_confidence": job.AvgConfidence,
	}).Info("Adaptation job finished")
}

func (s *JobService) publish(job *models.AdaptationJob) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJobEvent(context.Background(), job); err != nil {
		s.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to publish job event")
	}
}
