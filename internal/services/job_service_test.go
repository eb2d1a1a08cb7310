package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-adaptation-service/internal/cache"
	"catalog-adaptation-service/internal/models"
	"catalog-adaptation-service/internal/repository"
	"catalog-adaptation-service/internal/synthesis"
)

// memJobStore is an in-memory repository.JobStore
type memJobStore struct {
	mu             sync.Mutex
	jobs           map[uuid.UUID]models.AdaptationJob
	items          map[uuid.UUID][]models.AdaptationItem
	progressWrites int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{
		jobs:  make(map[uuid.UUID]models.AdaptationJob),
		items: make(map[uuid.UUID][]models.AdaptationItem),
	}
}

func (m *memJobStore) CreateJob(ctx context.Context, job *models.AdaptationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) GetJob(ctx context.Context, id uuid.UUID) (*models.AdaptationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &job, nil
}

func (m *memJobStore) ListJobs(ctx context.Context, opts models.JobListOptions) ([]models.AdaptationJob, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []models.AdaptationJob
	for _, job := range m.jobs {
		if opts.TenantID != "" && job.TenantID != opts.TenantID {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, int64(len(jobs)), nil
}

func (m *memJobStore) UpdateJob(ctx context.Context, job *models.AdaptationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = status
	job.ErrorMessage = errorMessage
	m.jobs[id] = job
	return nil
}

func (m *memJobStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress models.BatchProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressWrites++
	job := m.jobs[id]
	job.ProcessedItems = progress.Processed
	job.SuccessfulItems = progress.Successful
	job.FailedItems = progress.Failed
	job.Progress = progress.JSON()
	m.jobs[id] = job
	return nil
}

func (m *memJobStore) CreateItem(ctx context.Context, item *models.AdaptationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.JobID] = append(m.items[item.JobID], *item)
	return nil
}

func (m *memJobStore) ListItems(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.AdaptationItem, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]models.AdaptationItem(nil), m.items[jobID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	total := int64(len(items))
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

func (m *memJobStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressWrites
}

// MockPublisher records job events
type MockPublisher struct {
	mock.Mock
	mu       sync.Mutex
	statuses []models.JobStatus
}

func (m *MockPublisher) PublishJobEvent(ctx context.Context, job *models.AdaptationJob) error {
	m.mu.Lock()
	m.statuses = append(m.statuses, job.Status)
	m.mu.Unlock()
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockPublisher) published() []models.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.JobStatus(nil), m.statuses...)
}

// blockingSynthesizer holds every item until its context is done
type blockingSynthesizer struct {
	*synthesis.Engine
	started chan struct{}
	once    sync.Once
}

func (b *blockingSynthesizer) Synthesize(ctx context.Context, record models.ProductRecord, missing []models.AttributeDefinition, marketplace models.MarketplaceKey) (map[string]interface{}, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func newBlockingSynthesizer() *blockingSynthesizer {
	return &blockingSynthesizer{
		Engine:  synthesis.NewEngine(quietLogger(), nil),
		started: make(chan struct{}),
	}
}

func newTestJobService(t *testing.T, synth Synthesizer, store *memJobStore, publisher EventPublisher, limiter *JobLimiter, flushEvery int) *JobService {
	t.Helper()
	cfg := DefaultJobServiceConfig()
	if flushEvery > 0 {
		cfg.FlushEvery = flushEvery
	}
	return NewJobService(
		newTestService(t, synth),
		store,
		cache.NewProgressCache(nil, 0),
		publisher,
		limiter,
		cfg,
		quietLogger(),
	)
}

func waitForJob(t *testing.T, svc *JobService, id uuid.UUID) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx, id))
}

func TestJobService_SubmitAndComplete(t *testing.T) {
	store := newMemJobStore()
	publisher := new(MockPublisher)
	publisher.On("PublishJobEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newTestJobService(t, nil, store, publisher, nil, 2)

	ctx := context.Background()
	job, err := svc.Submit(ctx, SubmitRequest{
		TenantID:    "tenant-a",
		Marketplace: models.MarketplaceNamshi,
		SourceFile:  "catalog.csv",
		Records:     batchRecords(5),
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 5, job.TotalItems)

	waitForJob(t, svc, job.ID)

	stored, err := svc.GetJob(ctx, "tenant-a", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 5, stored.ProcessedItems)
	assert.Equal(t, 5, stored.SuccessfulItems)
	assert.Equal(t, 0, stored.FailedItems)
	assert.Greater(t, stored.AvgConfidence, 0.0)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, "Completed", stored.Progress["currentStep"])

	// items 2, 4 and the last one
	assert.Equal(t, 3, store.writes())

	results, total, err := svc.GetResults(ctx, "tenant-a", job.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, batchRecords(5)[i].SKU(), r.SKU)
		assert.Equal(t, "Clothing > Tops > Shirts", r.Adapted["category"])
	}

	progress, err := svc.Progress(ctx, "tenant-a", job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, progress.Processed)
	assert.Equal(t, 100.0, progress.Percentage)

	assert.Equal(t, []models.JobStatus{models.JobStatusRunning, models.JobStatusCompleted}, publisher.published())
	publisher.AssertNumberOfCalls(t, "PublishJobEvent", 2)
	assert.Equal(t, 0, svc.ActiveJobCount())
}

func TestJobService_TenantIsolation(t *testing.T) {
	svc := newTestJobService(t, nil, newMemJobStore(), nil, nil, 0)
	ctx := context.Background()

	job, err := svc.Submit(ctx, SubmitRequest{TenantID: "tenant-a", Marketplace: models.MarketplaceNamshi, Records: batchRecords(1)})
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)

	_, err = svc.GetJob(ctx, "tenant-b", job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, _, err = svc.GetResults(ctx, "tenant-b", job.ID, 0, 0)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, svc.Cancel(ctx, "tenant-b", job.ID), ErrJobNotFound)

	_, err = svc.GetJob(ctx, "tenant-a", uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs, total, err := svc.ListJobs(ctx, "tenant-b", models.JobListOptions{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Zero(t, total)
}

func TestJobService_SubmitValidation(t *testing.T) {
	svc := newTestJobService(t, nil, newMemJobStore(), nil, nil, 0)
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitRequest{TenantID: "t", Marketplace: models.MarketplaceNamshi})
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.Submit(ctx, SubmitRequest{TenantID: "t", Marketplace: "ebay", Records: batchRecords(1)})
	assert.ErrorIs(t, err, ErrUnknownMarketplace)
}

func TestJobService_Cancel(t *testing.T) {
	store := newMemJobStore()
	publisher := new(MockPublisher)
	publisher.On("PublishJobEvent", mock.Anything, mock.Anything).Return(nil)
	synth := newBlockingSynthesizer()
	svc := newTestJobService(t, synth, store, publisher, nil, 0)
	ctx := context.Background()

	job, err := svc.Submit(ctx, SubmitRequest{TenantID: "tenant-a", Marketplace: models.MarketplaceNamshi, Records: batchRecords(3)})
	require.NoError(t, err)

	select {
	case <-synth.started:
	case <-time.After(10 * time.Second):
		t.Fatal("job did not start")
	}

	require.NoError(t, svc.Cancel(ctx, "tenant-a", job.ID))
	waitForJob(t, svc, job.ID)

	stored, err := svc.GetJob(ctx, "tenant-a", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, stored.Status)
	assert.Equal(t, "Cancelled by user", stored.ErrorMessage)
	assert.Less(t, stored.ProcessedItems, 3)

	assert.ErrorIs(t, svc.Cancel(ctx, "tenant-a", job.ID), ErrJobNotRunning)
	assert.Equal(t, []models.JobStatus{models.JobStatusRunning, models.JobStatusCancelled}, publisher.published())
}

func TestJobService_ConcurrencyLimit(t *testing.T) {
	synth := newBlockingSynthesizer()
	limiter := NewJobLimiter(&JobLimiterConfig{MaxConcurrentJobs: 1, QueueTimeout: time.Millisecond})
	svc := newTestJobService(t, synth, newMemJobStore(), nil, limiter, 0)
	ctx := context.Background()

	first, err := svc.Submit(ctx, SubmitRequest{TenantID: "tenant-a", Marketplace: models.MarketplaceNamshi, Records: batchRecords(2)})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, SubmitRequest{TenantID: "tenant-a", Marketplace: models.MarketplaceAmazon, Records: batchRecords(2)})
	assert.ErrorIs(t, err, ErrTooManyJobs)

	other, err := svc.Submit(ctx, SubmitRequest{TenantID: "tenant-b", Marketplace: models.MarketplaceNamshi, Records: batchRecords(1)})
	require.NoError(t, err)

	svc.Shutdown()
	waitForJob(t, svc, first.ID)
	waitForJob(t, svc, other.ID)

	assert.Equal(t, 0, limiter.ActiveJobs("tenant-a"))
	_, err = svc.Submit(ctx, SubmitRequest{TenantID: "tenant-a", Marketplace: models.MarketplaceAmazon, Records: batchRecords(1)})
	require.NoError(t, err)
	svc.Shutdown()
}
