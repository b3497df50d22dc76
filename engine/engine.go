package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/fileconv/fileconv/convert"
	"github.com/fileconv/fileconv/database"
)

// ConversionOutcome is everything a finished conversion produced
type ConversionOutcome struct {
	Job        *database.Job
	Result     *convert.Result
	MethodUsed convert.Method
	Notices    []string
}

// RunConversion drives one request through the full pipeline: create the job
// record, stage a working directory, select a backend, convert, and record
// the outcome. The staging directory is removed on every path, success or
// failure.
func (serverHandler *ServerHandler) RunConversion(ctx context.Context, req convert.Request, jobType database.JobType) (*ConversionOutcome, error) {
	job, err := serverHandler.DB.CreateJob(jobType, req.Filename, int64(len(req.Input)), string(req.Method))
	if err != nil {
		Logger.Error("Unable to create job record", "error", err)
		return nil, fmt.Errorf("create job record: %w", err)
	}

	stagingDir := filepath.Join(serverHandler.ServerConfig.StagingPath, job.ID.String())
	if err := os.MkdirAll(stagingDir, os.ModePerm); err != nil {
		Logger.Error("Unable to create staging directory", "dir", stagingDir, "error", err)
		serverHandler.recordFailure(job, failf("create staging directory: %v", err))
		return &ConversionOutcome{Job: job}, err
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			Logger.Warn("Unable to remove staging directory", "dir", stagingDir, "error", err)
		}
	}()
	req.Options.WorkDir = stagingDir

	if err := serverHandler.DB.UpdateJobStatus(job.ID, database.JobStatusRunning, "converting "+req.Filename); err != nil {
		Logger.Error("Failed to update job status", "jobID", job.ID, "error", err)
	}

	plan, err := convert.Select(req)
	if err != nil {
		serverHandler.recordFailure(job, err)
		return &ConversionOutcome{Job: job}, err
	}
	if len(plan.Notices) > 0 {
		Logger.Info("Conversion plan substituted backend", "jobID", job.ID, "method", plan.Method, "notices", plan.Notices)
	}

	result, err := plan.Backend.Convert(ctx, req)
	if err != nil {
		serverHandler.recordFailure(job, err)
		return &ConversionOutcome{Job: job, MethodUsed: plan.Method, Notices: plan.Notices}, err
	}

	if err := serverHandler.DB.CompleteJob(job.ID, result.Filename, int64(len(result.Output))); err != nil {
		Logger.Error("Failed to mark job complete", "jobID", job.ID, "error", err)
	}

	cached := &CachedResult{
		Filename: result.Filename,
		Data:     result.Output,
		Preview:  serverHandler.generatePreview(result),
		MIME:     resultMIME(result.Filename),
	}
	serverHandler.Results.Put(job.ID.String(), cached)

	Logger.Info("Conversion complete", "jobID", job.ID, "method", plan.Method,
		"source", req.Filename, "output", result.Filename, "bytes", len(result.Output))
	return &ConversionOutcome{Job: job, Result: result, MethodUsed: plan.Method, Notices: plan.Notices}, nil
}

// recordFailure writes a classified failure onto the job record
func (serverHandler *ServerHandler) recordFailure(job *database.Job, err error) {
	kind := ""
	message := err.Error()
	if f, ok := convert.AsFailure(err); ok {
		kind = string(f.Kind)
		message = f.Message
	}
	Logger.Error("Conversion failed", "jobID", job.ID, "kind", kind, "error", message)
	if dbErr := serverHandler.DB.UpdateJobError(job.ID, kind, message); dbErr != nil {
		Logger.Error("Failed to record job error", "jobID", job.ID, "error", dbErr)
	}
}

func failf(format string, args ...interface{}) error {
	return &convert.Failure{Kind: convert.ProcessFailure, Message: fmt.Sprintf(format, args...)}
}

func resultMIME(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// generatePreview renders the first page of the artifact as a PNG sized for
// the browser. Preview failures are logged and swallowed, the conversion
// itself already succeeded.
func (serverHandler *ServerHandler) generatePreview(result *convert.Result) []byte {
	img, err := serverHandler.firstPageImage(result)
	if err != nil {
		Logger.Info("Preview unavailable for result", "filename", result.Filename, "error", err)
		return nil
	}

	resized := imaging.Resize(img, serverHandler.ServerConfig.PreviewWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		Logger.Info("Preview encoding failed", "filename", result.Filename, "error", err)
		return nil
	}
	return buf.Bytes()
}

func (serverHandler *ServerHandler) firstPageImage(result *convert.Result) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(result.Filename)) {
	case ".pdf":
		doc, err := fitz.NewFromMemory(result.Output)
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		if doc.NumPage() == 0 {
			return nil, fmt.Errorf("document has no pages")
		}
		return doc.ImageDPI(0, float64(serverHandler.ServerConfig.PreviewDPI))
	case ".tiff", ".tif":
		return tiff.Decode(bytes.NewReader(result.Output))
	default:
		return nil, fmt.Errorf("no preview renderer for %s", result.Filename)
	}
}
