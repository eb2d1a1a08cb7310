package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// JobLimiterConfig defines concurrency limits for adaptation jobs
type JobLimiterConfig struct {
	MaxConcurrentJobs       int           // Max concurrent jobs per tenant
	MaxConcurrentPerChannel int           // Max concurrent jobs per tenant and marketplace
	JobTimeout              time.Duration // Max duration for a single job
	QueueTimeout            time.Duration // Max time Acquire waits for a slot
}

// DefaultJobLimiterConfig returns production defaults
func DefaultJobLimiterConfig() *JobLimiterConfig {
	return &JobLimiterConfig{
		MaxConcurrentJobs:       3,
		MaxConcurrentPerChannel: 2,
		JobTimeout:              30 * time.Minute,
		QueueTimeout:            time.Minute,
	}
}

// JobLimiter manages per-tenant and per-marketplace job slots
type JobLimiter struct {
	mu            sync.RWMutex
	tenantSems    map[string]chan struct{}
	channelSems   map[string]chan struct{}
	config        *JobLimiterConfig
	activeJobs    map[string]int
	activeChannel map[string]int
}

// NewJobLimiter creates a new job limiter
func NewJobLimiter(config *JobLimiterConfig) *JobLimiter {
	if config == nil {
		config = DefaultJobLimiterConfig()
	}
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	if config.MaxConcurrentPerChannel <= 0 {
		config.MaxConcurrentPerChannel = config.MaxConcurrentJobs
	}
	return &JobLimiter{
		tenantSems:    make(map[string]chan struct{}),
		channelSems:   make(map[string]chan struct{}),
		config:        config,
		activeJobs:    make(map[string]int),
		activeChannel: make(map[string]int),
	}
}

func channelKey(tenantID, marketplace string) string {
	return tenantID + "/" + marketplace
}

func (l *JobLimiter) semaphores(tenantID, marketplace string) (chan struct{}, chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tenantSem, ok := l.tenantSems[tenantID]
	if !ok {
		tenantSem = make(chan struct{}, l.config.MaxConcurrentJobs)
		l.tenantSems[tenantID] = tenantSem
	}
	key := channelKey(tenantID, marketplace)
	channelSem, ok := l.channelSems[key]
	if !ok {
		channelSem = make(chan struct{}, l.config.MaxConcurrentPerChannel)
		l.channelSems[key] = channelSem
	}
	return tenantSem, channelSem
}

// Acquire waits up to QueueTimeout for a slot. The returned release function
// must be called when the job ends.
func (l *JobLimiter) Acquire(ctx context.Context, tenantID, marketplace string) (func(), error) {
	queueCtx, cancel := context.WithTimeout(ctx, l.config.QueueTimeout)
	defer cancel()

	tenantSem, channelSem := l.semaphores(tenantID, marketplace)
	select {
	case tenantSem <- struct{}{}:
	case <-queueCtx.Done():
		return nil, fmt.Errorf("%w: tenant=%s", ErrTooManyJobs, tenantID)
	}

	select {
	case channelSem <- struct{}{}:
	case <-queueCtx.Done():
		<-tenantSem
		return nil, fmt.Errorf("%w: tenant=%s marketplace=%s", ErrTooManyJobs, tenantID, marketplace)
	}

	return l.track(tenantID, marketplace, tenantSem, channelSem), nil
}

// TryAcquire takes a slot without blocking
func (l *JobLimiter) TryAcquire(tenantID, marketplace string) (func(), bool) {
	tenantSem, channelSem := l.semaphores(tenantID, marketplace)
	select {
	case tenantSem <- struct{}{}:
	default:
		return nil, false
	}

	select {
	case channelSem <- struct{}{}:
	default:
		<-tenantSem
		return nil, false
	}

	return l.track(tenantID, marketplace, tenantSem, channelSem), true
}

func (l *JobLimiter) track(tenantID, marketplace string, tenantSem, channelSem chan struct{}) func() {
	key := channelKey(tenantID, marketplace)

	l.mu.Lock()
	l.activeJobs[tenantID]++
	l.activeChannel[key]++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.activeJobs[tenantID]--
			l.activeChannel[key]--
			l.mu.Unlock()

			<-channelSem
			<-tenantSem
		})
	}
}

// ActiveJobs returns the number of running jobs of a tenant
func (l *JobLimiter) ActiveJobs(tenantID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeJobs[tenantID]
}

// CanAcceptJob checks if a new job can start without waiting
func (l *JobLimiter) CanAcceptJob(tenantID, marketplace string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.activeJobs[tenantID] < l.config.MaxConcurrentJobs &&
		l.activeChannel[channelKey(tenantID, marketplace)] < l.config.MaxConcurrentPerChannel
}

// Stats returns limiter statistics
func (l *JobLimiter) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tenants := make(map[string]int)
	for k, v := range l.activeJobs {
		if v > 0 {
			tenants[k] = v
		}
	}

	return map[string]interface{}{
		"config": map[string]interface{}{
			"maxConcurrentJobs":       l.config.MaxConcurrentJobs,
			"maxConcurrentPerChannel": l.config.MaxConcurrentPerChannel,
			"jobTimeout":              l.config.JobTimeout.String(),
			"queueTimeout":            l.config.QueueTimeout.String(),
		},
		"activeJobsByTenant": tenants,
		"totalTenants":       len(l.tenantSems),
	}
}
