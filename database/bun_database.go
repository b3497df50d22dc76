package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// BunDB implements Repository using Bun ORM over sqlite
type BunDB struct {
	db *bun.DB
}

// NewRepository opens the sqlite job store, creating the databases folder and
// the schema on first run. dbName ":memory:" gives an ephemeral store for
// tests.
func NewRepository(dbName string) (*BunDB, error) {
	if dbName == "" {
		dbName = "databases/fileconv.sqlite"
	}
	if dbName != ":memory:" {
		dir := filepath.Dir(dbName)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create database folder %s: %w", dir, err)
		}
	}

	connectionString := fmt.Sprintf("file:%s?cache=shared&mode=rwc", dbName)
	sqlDB, err := sql.Open(sqliteshim.ShimName, connectionString)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	// Option to turn on verbose logging just returns failures otherwise
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(false)))

	if _, err := db.NewCreateTable().
		Model((*BunJob)(nil)).
		IfNotExists().
		Exec(context.Background()); err != nil {
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &BunDB{db: db}, nil
}

func (b *BunDB) Close() error {
	return b.db.Close()
}

// CreateJob records a new pending conversion job
func (b *BunDB) CreateJob(jobType JobType, sourceName string, inputBytes int64, method string) (*Job, error) {
	ctx := context.Background()
	now := time.Now()
	jobID, err := NewULID(now)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:         jobID,
		Type:       jobType,
		Status:     JobStatusPending,
		Method:     method,
		SourceName: sourceName,
		InputBytes: inputBytes,
		Message:    "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := b.db.NewInsert().Model(FromJob(job)).Exec(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJobStatus updates the status of a job
func (b *BunDB) UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error {
	ctx := context.Background()
	now := time.Now()

	query := b.db.NewUpdate().
		Model((*BunJob)(nil)).
		Set("status = ?", status).
		Set("message = ?", message).
		Set("updated_at = ?", now)

	if status == JobStatusRunning {
		query = query.Set("started_at = COALESCE(started_at, ?)", now)
	}
	if status == JobStatusCompleted || status == JobStatusFailed {
		query = query.Set("completed_at = ?", now)
	}

	_, err := query.Where("id = ?", jobID.String()).Exec(ctx)
	return err
}

// UpdateJobError marks a job failed with its classified failure category
func (b *BunDB) UpdateJobError(jobID ulid.ULID, failureKind string, errorMsg string) error {
	ctx := context.Background()
	now := time.Now()

	_, err := b.db.NewUpdate().
		Model((*BunJob)(nil)).
		Set("status = ?", JobStatusFailed).
		Set("failure_kind = ?", failureKind).
		Set("error = ?", errorMsg).
		Set("updated_at = ?", now).
		Set("completed_at = ?", now).
		Where("id = ?", jobID.String()).
		Exec(ctx)

	return err
}

// CompleteJob marks a job as completed with its output artifact
func (b *BunDB) CompleteJob(jobID ulid.ULID, outputName string, outputBytes int64) error {
	ctx := context.Background()
	now := time.Now()

	_, err := b.db.NewUpdate().
		Model((*BunJob)(nil)).
		Set("status = ?", JobStatusCompleted).
		Set("output_name = ?", outputName).
		Set("output_bytes = ?", outputBytes).
		Set("message = ?", "conversion complete").
		Set("updated_at = ?", now).
		Set("completed_at = ?", now).
		Where("id = ?", jobID.String()).
		Exec(ctx)

	return err
}

// GetJob retrieves a job by ID
func (b *BunDB) GetJob(jobID ulid.ULID) (*Job, error) {
	ctx := context.Background()
	bunJob := new(BunJob)

	err := b.db.NewSelect().
		Model(bunJob).
		Where("id = ?", jobID.String()).
		Scan(ctx)

	if err != nil {
		return nil, err
	}
	return bunJob.ToJob()
}

// GetRecentJobs retrieves the most recent jobs with pagination
func (b *BunDB) GetRecentJobs(limit, offset int) ([]Job, error) {
	ctx := context.Background()
	var bunJobs []BunJob

	err := b.db.NewSelect().
		Model(&bunJobs).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)

	if err != nil {
		return nil, err
	}
	return b.bunJobsToJobs(bunJobs)
}

// GetActiveJobs retrieves all running or pending jobs
func (b *BunDB) GetActiveJobs() ([]Job, error) {
	ctx := context.Background()
	var bunJobs []BunJob

	err := b.db.NewSelect().
		Model(&bunJobs).
		Where("status IN (?)", bun.In([]string{string(JobStatusPending), string(JobStatusRunning)})).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}
	return b.bunJobsToJobs(bunJobs)
}

// DeleteOldJobs deletes finished jobs older than the specified duration
func (b *BunDB) DeleteOldJobs(olderThan time.Duration) (int, error) {
	ctx := context.Background()
	cutoffTime := time.Now().Add(-olderThan)

	result, err := b.db.NewDelete().
		Model((*BunJob)(nil)).
		Where("status IN (?)", bun.In([]string{string(JobStatusCompleted), string(JobStatusFailed)})).
		Where("completed_at < ?", cutoffTime).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	count, err := result.RowsAffected()
	return int(count), err
}

// bunJobsToJobs converts a slice of BunJob to Job
func (b *BunDB) bunJobsToJobs(bunJobs []BunJob) ([]Job, error) {
	jobs := make([]Job, 0, len(bunJobs))
	for _, bunJob := range bunJobs {
		job, err := bunJob.ToJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}
