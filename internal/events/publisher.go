package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"catalog-adaptation-service/internal/models"
)

// Job lifecycle subjects
const (
	SubjectJobStarted   = "catalog.adaptation.started"
	SubjectJobCompleted = "catalog.adaptation.completed"
	SubjectJobFailed    = "catalog.adaptation.failed"
)

// JobEvent is published when an adaptation job changes state
type JobEvent struct {
	EventType       string    `json:"event_type"`
	JobID           string    `json:"job_id"`
	TenantID        string    `json:"tenant_id"`
	Marketplace     string    `json:"marketplace"`
	Status          string    `json:"status"`
	TotalItems      int       `json:"total_items"`
	SuccessfulItems int       `json:"successful_items"`
	FailedItems     int       `json:"failed_items"`
	AvgConfidence   float64   `json:"avg_confidence"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewJobEvent builds the event for a job
func NewJobEvent(subject string, job *models.AdaptationJob) JobEvent {
	return JobEvent{
		EventType:       subject,
		JobID:           job.ID.String(),
		TenantID:        job.TenantID,
		Marketplace:     string(job.Marketplace),
		Status:          string(job.Status),
		TotalItems:      job.TotalItems,
		SuccessfulItems: job.SuccessfulItems,
		FailedItems:     job.FailedItems,
		AvgConfidence:   job.AvgConfidence,
		Error:           job.ErrorMessage,
		Timestamp:       time.Now().UTC(),
	}
}

// SubjectForStatus returns the subject announcing a job status
func SubjectForStatus(status models.JobStatus) (string, bool) {
	switch status {
	case models.JobStatusRunning:
		return SubjectJobStarted, true
	case models.JobStatusCompleted:
		return SubjectJobCompleted, true
	case models.JobStatusFailed, models.JobStatusCancelled:
		return SubjectJobFailed, true
	}
	return "", false
}

// Publisher publishes job lifecycle events to NATS. A publisher without a
// connection drops events.
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS. An empty URL returns a disconnected publisher.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	p := &Publisher{logger: logger.WithField("component", "events.publisher")}
	if natsURL == "" {
		return p, nil
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("catalog-adaptation-service"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p.conn = conn
	return p, nil
}

// Connected reports whether events reach NATS
func (p *Publisher) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// PublishJobEvent publishes the event for the current state of a job
func (p *Publisher) PublishJobEvent(ctx context.Context, job *models.AdaptationJob) error {
	subject, ok := SubjectForStatus(job.Status)
	if !ok {
		return nil
	}
	if p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NewJobEvent(subject, job))
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject": subject,
		"job_id":  job.ID,
		"tenant":  job.TenantID,
	}).Debug("Published job event")
	return nil
}

// Close drains the connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

// ParseJobID extracts the job ID of an event
func (e JobEvent) ParseJobID() (uuid.UUID, error) {
	return uuid.Parse(e.JobID)
}
