package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-adaptation-service/internal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("record not found")

// JobStore persists adaptation jobs and their per-item results
type JobStore interface {
	CreateJob(ctx context.Context, job *models.AdaptationJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AdaptationJob, error)
	ListJobs(ctx context.Context, opts models.JobListOptions) ([]models.AdaptationJob, int64, error)
	UpdateJob(ctx context.Context, job *models.AdaptationJob) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage string) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress models.BatchProgress) error
	CreateItem(ctx context.Context, item *models.AdaptationItem) error
	ListItems(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.AdaptationItem, int64, error)
}

// JobRepository handles database operations for adaptation jobs
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ JobStore = (*JobRepository)(nil)

// CreateJob creates a new adaptation job
func (r *JobRepository) CreateJob(ctx context.Context, job *models.AdaptationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJob retrieves an adaptation job by ID
func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.AdaptationJob, error) {
	var job models.AdaptationJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs retrieves jobs with pagination and filtering
func (r *JobRepository) ListJobs(ctx context.Context, opts models.JobListOptions) ([]models.AdaptationJob, int64, error) {
	var jobs []models.AdaptationJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AdaptationJob{})

	if opts.TenantID != "" {
		query = query.Where("tenant_id = ?", opts.TenantID)
	}
	if opts.Marketplace != "" {
		query = query.Where("marketplace = ?", opts.Marketplace)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	// Get total count
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination and ordering
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	query = query.Order("created_at DESC")

	if err := query.Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

// UpdateJob updates an existing job
func (r *JobRepository) UpdateJob(ctx context.Context, job *models.AdaptationJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// UpdateJobStatus updates the job status
func (r *JobRepository) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMessage,
		"updated_at":    time.Now(),
	}
	if status.IsTerminal() {
		now := time.Now()
		updates["completed_at"] = &now
	}
	return r.db.WithContext(ctx).
		Model(&models.AdaptationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateJobProgress updates the job counters and progress snapshot
func (r *JobRepository) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress models.BatchProgress) error {
	return r.db.WithContext(ctx).
		Model(&models.AdaptationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":         progress.JSON(),
			"processed_items":  progress.Processed,
			"successful_items": progress.Successful,
			"failed_items":     progress.Failed,
			"updated_at":       time.Now(),
		}).Error
}

// CreateItem stores the result of one record
func (r *JobRepository) CreateItem(ctx context.Context, item *models.AdaptationItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// ListItems retrieves the results of a job in input order
func (r *JobRepository) ListItems(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.AdaptationItem, int64, error) {
	var items []models.AdaptationItem
	var total int64

	query := r.db.WithContext(ctx).Model(&models.AdaptationItem{}).Where("job_id = ?", jobID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Order("position ASC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
