// Package database tracks conversion jobs in an embedded sqlite store so the
// UI can show recent activity and survive a restart without losing history.
package database

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Repository defines database operations
type Repository interface {
	Close() error
	CreateJob(jobType JobType, sourceName string, inputBytes int64, method string) (*Job, error)
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, failureKind string, errorMsg string) error
	CompleteJob(jobID ulid.ULID, outputName string, outputBytes int64) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// NewULID generates a sortable job identifier for the given time
func NewULID(t time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	newULID, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return newULID, err
	}
	return newULID, nil
}
