package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus represents the status of an adaptation job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JSONB is a generic JSON object column
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// AdaptationJob is a persisted batch adaptation run
type AdaptationJob struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    string         `gorm:"type:varchar(255);not null;index:idx_adaptation_jobs_tenant" json:"tenantId"`
	Marketplace MarketplaceKey `gorm:"type:varchar(50);not null" json:"marketplace"`
	SourceFile  string         `gorm:"type:varchar(500)" json:"sourceFile,omitempty"`
	Status      JobStatus      `gorm:"type:varchar(50);not null;default:'PENDING';index:idx_adaptation_jobs_status" json:"status"`

	TotalItems      int     `gorm:"default:0" json:"totalItems"`
	ProcessedItems  int     `gorm:"default:0" json:"processedItems"`
	SuccessfulItems int     `gorm:"default:0" json:"successfulItems"`
	FailedItems     int     `gorm:"default:0" json:"failedItems"`
	AvgConfidence   float64 `gorm:"default:0" json:"avgConfidence"`

	Progress     JSONB          `gorm:"type:jsonb" json:"progress,omitempty"`
	IngestErrors datatypes.JSON `gorm:"type:jsonb" json:"ingestErrors,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"errorMessage,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for AdaptationJob
func (AdaptationJob) TableName() string {
	return "adaptation_jobs"
}

// BeforeCreate assigns an ID when none was set
func (j *AdaptationJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// AdaptationItem stores the result of one record of a job
type AdaptationItem struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_adaptation_items_job" json:"jobId"`
	Position   int            `gorm:"not null" json:"position"`
	SKU        string         `gorm:"type:varchar(255);index:idx_adaptation_items_sku" json:"sku"`
	Confidence int            `json:"confidence"`
	IssueCount int            `json:"issueCount"`
	Result     datatypes.JSON `gorm:"type:jsonb" json:"result"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// TableName specifies the table name for AdaptationItem
func (AdaptationItem) TableName() string {
	return "adaptation_items"
}

func (i *AdaptationItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TemplateVersion records one applied template update
type TemplateVersion struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Marketplace MarketplaceKey `gorm:"type:varchar(50);not null;index:idx_template_versions_marketplace" json:"marketplace"`
	Version     string         `gorm:"type:varchar(50);not null" json:"version"`
	Template    datatypes.JSON `gorm:"type:jsonb" json:"template"`
	UpdatedBy   string         `gorm:"type:varchar(255)" json:"updatedBy,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// TableName specifies the table name for TemplateVersion
func (TemplateVersion) TableName() string {
	return "template_versions"
}

func (v *TemplateVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// JobListOptions filters job listings
type JobListOptions struct {
	TenantID    string
	Marketplace MarketplaceKey
	Status      JobStatus
	Limit       int
	Offset      int
}

// ErrorResponse is the JSON error envelope of the HTTP API
type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

// Error describes one API error
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// SuccessResponse is the JSON success envelope of the HTTP API
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}
