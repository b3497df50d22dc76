package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType represents the type of conversion a job performed
type JobType string

const (
	JobTypePresentationToPDF JobType = "presentation_to_pdf"
	JobTypeDocumentToTIFF    JobType = "document_to_tiff"
)

// Job is one conversion request and its outcome
type Job struct {
	ID          ulid.ULID  `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Method      string     `json:"method"`                // backend that ran the conversion
	SourceName  string     `json:"sourceName"`            // uploaded filename
	OutputName  string     `json:"outputName,omitempty"`  // produced artifact filename
	InputBytes  int64      `json:"inputBytes"`
	OutputBytes int64      `json:"outputBytes,omitempty"`
	Message     string     `json:"message"`               // status message
	FailureKind string     `json:"failureKind,omitempty"` // classified failure category
	Error       string     `json:"error,omitempty"`       // error message if failed
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Method      string     `bun:"method,default:''"`
	SourceName  string     `bun:"source_name,default:''"`
	OutputName  string     `bun:"output_name,default:''"`
	InputBytes  int64      `bun:"input_bytes,default:0"`
	OutputBytes int64      `bun:"output_bytes,default:0"`
	Message     string     `bun:"message,default:''"`
	FailureKind string     `bun:"failure_kind,nullzero"`
	Error       string     `bun:"error,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Method:      bj.Method,
		SourceName:  bj.SourceName,
		OutputName:  bj.OutputName,
		InputBytes:  bj.InputBytes,
		OutputBytes: bj.OutputBytes,
		Message:     bj.Message,
		FailureKind: bj.FailureKind,
		Error:       bj.Error,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Method:      job.Method,
		SourceName:  job.SourceName,
		OutputName:  job.OutputName,
		InputBytes:  job.InputBytes,
		OutputBytes: job.OutputBytes,
		Message:     job.Message,
		FailureKind: job.FailureKind,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
