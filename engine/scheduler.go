package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fileconv/fileconv/database"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// jobRetention is how long finished job records stay in the database
const jobRetention = 7 * 24 * time.Hour

// InitializeSchedules starts the janitor cron job that sweeps expired
// results, stale staging directories and old job records
func (serverHandler *ServerHandler) InitializeSchedules(db database.Repository) {
	c := cron.New()
	var janitorJob cron.Job
	janitorJob = cron.FuncJob(func() { serverHandler.janitorJobFunc(db) })
	janitorJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(janitorJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", serverHandler.ServerConfig.CleanupInterval), janitorJob)
	Logger.Info("Adding janitor job scheduler", "interval_minutes", serverHandler.ServerConfig.CleanupInterval)
	c.Start()
}

func (serverHandler *ServerHandler) janitorJobFunc(db database.Repository) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in janitor job", "panic", r)
		}
	}()

	if removed := serverHandler.Results.Sweep(); removed > 0 {
		Logger.Info("Janitor swept expired results", "removed", removed)
	}

	serverHandler.sweepStagingDirs()

	deleted, err := db.DeleteOldJobs(jobRetention)
	if err != nil {
		Logger.Error("Janitor could not delete old jobs", "error", err)
		return
	}
	if deleted > 0 {
		Logger.Info("Janitor deleted old job records", "deleted", deleted)
	}
}

// sweepStagingDirs removes staging directories a crashed conversion left
// behind. Anything older than the result retention window cannot still be in
// use.
func (serverHandler *ServerHandler) sweepStagingDirs() {
	stagingPath := serverHandler.ServerConfig.StagingPath
	entries, err := os.ReadDir(stagingPath)
	if err != nil {
		Logger.Warn("Janitor could not read staging directory", "path", stagingPath, "error", err)
		return
	}
	cutoff := time.Now().Add(-time.Duration(serverHandler.ServerConfig.ResultTTL) * time.Minute)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(stagingPath, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			Logger.Warn("Janitor could not remove stale staging directory", "dir", dir, "error", err)
			continue
		}
		Logger.Info("Janitor removed stale staging directory", "dir", dir)
	}
}
