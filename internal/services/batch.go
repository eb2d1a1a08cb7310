package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"catalog-adaptation-service/internal/models"
)

// ProgressFunc receives progress after every processed item
type ProgressFunc func(progress models.BatchProgress)

// ResultFunc receives each item result as soon as it is produced
type ResultFunc func(index int, result models.AdaptationResult)

// ProcessBatch adapts records in order. A failing item becomes a failed
// result and the batch continues. When ctx is cancelled between items the
// results produced so far are returned together with the context error.
func (s *AdaptationService) ProcessBatch(ctx context.Context, records []models.ProductRecord, key models.MarketplaceKey, onProgress ProgressFunc) ([]models.AdaptationResult, error) {
	results := make([]models.AdaptationResult, 0, len(records))
	err := s.StreamBatch(ctx, records, key, onProgress, func(_ int, result models.AdaptationResult) {
		results = append(results, result)
	})
	return results, err
}

// StreamBatch is ProcessBatch without collecting results
func (s *AdaptationService) StreamBatch(ctx context.Context, records []models.ProductRecord, key models.MarketplaceKey, onProgress ProgressFunc, onResult ResultFunc) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}
	tmpl, err := s.Template(key)
	if err != nil {
		return err
	}

	start := time.Now()
	progress := models.BatchProgress{Total: len(records)}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			s.logger.WithFields(logrus.Fields{
				"marketplace": key,
				"processed":   progress.Processed,
				"total":       progress.Total,
			}).Info("Batch cancelled")
			return err
		}

		progress.CurrentStep = fmt.Sprintf("Adapting %s (%d/%d)", displaySKU(record, i), i+1, len(records))
		result, itemErr := s.adaptItem(ctx, record, tmpl)
		if itemErr != nil {
			s.logger.WithError(itemErr).WithFields(logrus.Fields{
				"sku":   record.SKU(),
				"index": i,
			}).Warn("Failed to adapt item")
			result = models.NewFailedResult(record, key, fmt.Sprintf("Processing error: %v", itemErr))
		}

		progress.Processed++
		if result.Succeeded() {
			progress.Successful++
		} else {
			progress.Failed++
		}
		progress.Percentage = float64(progress.Processed) / float64(progress.Total) * 100
		elapsed := time.Since(start)
		remaining := progress.Total - progress.Processed
		progress.ETA = time.Duration(int64(elapsed) / int64(progress.Processed) * int64(remaining))

		if onResult != nil {
			onResult(i, result)
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"marketplace": key,
		"total":       progress.Total,
		"successful":  progress.Successful,
		"failed":      progress.Failed,
		"duration":    time.Since(start).String(),
	}).Info("Batch completed")
	return nil
}

// adaptItem adapts one record and converts a panic into an error
func (s *AdaptationService) adaptItem(ctx context.Context, record models.ProductRecord, tmpl *models.MarketplaceTemplate) (result models.AdaptationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if record == nil {
		return models.AdaptationResult{}, ErrNilRecord
	}
	return s.adapt(ctx, record, tmpl)
}

func displaySKU(record models.ProductRecord, index int) string {
	if sku := record.SKU(); sku != "" {
		return sku
	}
	return fmt.Sprintf("item %d", index+1)
}
