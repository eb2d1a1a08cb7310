package services

import "errors"

var (
	// ErrUnknownMarketplace is returned for marketplace keys without a template
	ErrUnknownMarketplace = errors.New("unknown marketplace")
	// ErrEmptyBatch is returned when a batch contains no records
	ErrEmptyBatch = errors.New("batch contains no records")
	// ErrNilRecord is returned when a nil record is adapted
	ErrNilRecord = errors.New("record is nil")
	// ErrJobNotFound is returned for unknown jobs or jobs of another tenant
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotRunning is returned when cancelling a job that already finished
	ErrJobNotRunning = errors.New("job is not running")
	// ErrTooManyJobs is returned when the tenant has no free job slot
	ErrTooManyJobs = errors.New("concurrent job limit reached for tenant")
)
