package database

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testRepository(t *testing.T) *BunDB {
	t.Helper()
	if Logger == nil {
		Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	db, err := NewRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJobLifecycle(t *testing.T) {
	db := testRepository(t)

	job, err := db.CreateJob(JobTypePresentationToPDF, "deck.pptx", 2048, "text")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if job.Status != JobStatusPending {
		t.Errorf("New job status = %s, want pending", job.Status)
	}

	if err := db.UpdateJobStatus(job.ID, JobStatusRunning, "converting"); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	running, err := db.GetJob(job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if running.Status != JobStatusRunning {
		t.Errorf("Status = %s, want running", running.Status)
	}
	if running.StartedAt == nil {
		t.Error("StartedAt was not set when job went running")
	}

	if err := db.CompleteJob(job.ID, "deck.pdf", 4096); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}
	done, err := db.GetJob(job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if done.Status != JobStatusCompleted {
		t.Errorf("Status = %s, want completed", done.Status)
	}
	if done.OutputName != "deck.pdf" || done.OutputBytes != 4096 {
		t.Errorf("Output = %s/%d, want deck.pdf/4096", done.OutputName, done.OutputBytes)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt was not set on completion")
	}
}

func TestJobFailure(t *testing.T) {
	db := testRepository(t)

	job, err := db.CreateJob(JobTypeDocumentToTIFF, "scan.pdf", 1024, "rasterize")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	if err := db.UpdateJobError(job.ID, "backend_unavailable", "poppler-utils is not installed"); err != nil {
		t.Fatalf("Failed to record error: %v", err)
	}

	failed, err := db.GetJob(job.ID)
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if failed.Status != JobStatusFailed {
		t.Errorf("Status = %s, want failed", failed.Status)
	}
	if failed.FailureKind != "backend_unavailable" {
		t.Errorf("FailureKind = %s", failed.FailureKind)
	}
	if failed.Error == "" {
		t.Error("Error message was not recorded")
	}
}

func TestRecentAndActiveJobs(t *testing.T) {
	db := testRepository(t)

	first, err := db.CreateJob(JobTypePresentationToPDF, "a.pptx", 10, "text")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	second, err := db.CreateJob(JobTypeDocumentToTIFF, "b.pdf", 20, "rasterize")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	if err := db.CompleteJob(first.ID, "a.pdf", 30); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}

	recent, err := db.GetRecentJobs(10, 0)
	if err != nil {
		t.Fatalf("Failed to get recent jobs: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Recent jobs = %d, want 2", len(recent))
	}

	active, err := db.GetActiveJobs()
	if err != nil {
		t.Fatalf("Failed to get active jobs: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Errorf("Active jobs = %v, want just the pending one", active)
	}
}

func TestDeleteOldJobs(t *testing.T) {
	db := testRepository(t)

	job, err := db.CreateJob(JobTypePresentationToPDF, "old.pptx", 10, "text")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err := db.CompleteJob(job.ID, "old.pdf", 20); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}

	// a negative retention makes everything already finished "old"
	deleted, err := db.DeleteOldJobs(-time.Minute)
	if err != nil {
		t.Fatalf("Failed to delete old jobs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Deleted = %d, want 1", deleted)
	}

	if _, err := db.GetJob(job.ID); err == nil {
		t.Error("Deleted job is still retrievable")
	}
}
