package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"catalog-adaptation-service/internal/database"
	"catalog-adaptation-service/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, nil))
	return db
}

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	job := &models.AdaptationJob{
		TenantID:    "tenant-a",
		Marketplace: models.MarketplaceNamshi,
		SourceFile:  "catalog.xlsx",
		Status:      models.JobStatusPending,
		TotalItems:  3,
	}
	require.NoError(t, repo.CreateJob(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)

	require.NoError(t, repo.UpdateJobProgress(ctx, job.ID, models.BatchProgress{
		Total: 3, Processed: 2, Successful: 1, Failed: 1, Percentage: 66.7, ETA: 4 * time.Second,
	}))
	require.NoError(t, repo.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted, ""))

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.ProcessedItems)
	assert.Equal(t, 1, got.SuccessfulItems)
	assert.Equal(t, 1, got.FailedItems)
	assert.EqualValues(t, 4, got.Progress["etaSeconds"])
	assert.NotNil(t, got.CompletedAt)

	_, err = repo.GetJob(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobRepository_ListJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	base := time.Now().Add(-time.Hour)
	for i, spec := range []struct {
		tenant string
		market models.MarketplaceKey
		status models.JobStatus
	}{
		{"tenant-a", models.MarketplaceNamshi, models.JobStatusCompleted},
		{"tenant-a", models.MarketplaceAmazon, models.JobStatusRunning},
		{"tenant-a", models.MarketplaceNamshi, models.JobStatusFailed},
		{"tenant-b", models.MarketplaceNamshi, models.JobStatusCompleted},
	} {
		require.NoError(t, repo.CreateJob(ctx, &models.AdaptationJob{
			TenantID:    spec.tenant,
			Marketplace: spec.market,
			Status:      spec.status,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	jobs, total, err := repo.ListJobs(ctx, models.JobListOptions{TenantID: "tenant-a"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, jobs, 3)
	assert.Equal(t, models.JobStatusFailed, jobs[0].Status, "newest first")

	jobs, total, err = repo.ListJobs(ctx, models.JobListOptions{TenantID: "tenant-a", Marketplace: models.MarketplaceNamshi, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, jobs, 1)

	_, total, err = repo.ListJobs(ctx, models.JobListOptions{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestJobRepository_Items(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	job := &models.AdaptationJob{TenantID: "t", Marketplace: models.MarketplaceNoon, Status: models.JobStatusRunning}
	require.NoError(t, repo.CreateJob(ctx, job))

	for _, pos := range []int{2, 0, 1} {
		require.NoError(t, repo.CreateItem(ctx, &models.AdaptationItem{
			JobID:      job.ID,
			Position:   pos,
			SKU:        fmt.Sprintf("SKU-%d", pos),
			Confidence: 90,
			Result:     datatypes.JSON(`{"sku":"x"}`),
		}))
	}

	items, total, err := repo.ListItems(ctx, job.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "SKU-0", items[0].SKU)
	assert.Equal(t, "SKU-1", items[1].SKU)

	items, _, err = repo.ListItems(ctx, job.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SKU-2", items[0].SKU)
}

func TestTemplateRepository_Versions(t *testing.T) {
	ctx := context.Background()
	repo := NewTemplateRepository(newTestDB(t))

	base := time.Now().Add(-time.Hour)
	versions := []models.TemplateVersion{
		{Marketplace: models.MarketplaceNamshi, Version: "2.1.1", CreatedAt: base},
		{Marketplace: models.MarketplaceNamshi, Version: "2.1.2", CreatedAt: base.Add(time.Minute)},
		{Marketplace: models.MarketplaceAmazon, Version: "2024.2", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range versions {
		versions[i].Template = datatypes.JSON(`{}`)
		require.NoError(t, repo.SaveVersion(ctx, &versions[i]))
	}

	history, err := repo.ListVersions(ctx, models.MarketplaceNamshi)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2.1.2", history[0].Version)

	latest, err := repo.LatestVersions(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, models.MarketplaceAmazon, latest[0].Marketplace)
	assert.Equal(t, "2.1.2", latest[1].Version)
}
