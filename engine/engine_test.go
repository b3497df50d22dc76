package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fileconv/fileconv/config"
	"github.com/fileconv/fileconv/convert"
	"github.com/fileconv/fileconv/database"
)

func testHandler(t *testing.T) *ServerHandler {
	t.Helper()
	if Logger == nil {
		Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if database.Logger == nil {
		database.Logger = Logger
	}
	db, err := database.NewRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	serverConfig := config.ServerConfig{
		StagingPath:  t.TempDir(),
		PreviewDPI:   72,
		PreviewWidth: 320,
		ResultTTL:    30,
		FrontEndConfig: config.FrontEndConfig{
			RecentJobCount: 10,
		},
	}
	return &ServerHandler{
		DB:           db,
		Echo:         echo.New(),
		ServerConfig: serverConfig,
		Results:      NewResultCache(time.Duration(serverConfig.ResultTTL) * time.Minute),
	}
}

func deckFixture(t *testing.T, texts ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, text := range texts {
		w, err := zw.Create(fmt.Sprintf("ppt/slides/slide%d.xml", i+1))
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(w, `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`, text)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRunConversionTextMethod(t *testing.T) {
	serverHandler := testHandler(t)

	req := convert.Request{
		Input:    deckFixture(t, "Agenda", "Budget"),
		Filename: "meeting.pptx",
		Source:   convert.KindPresentation,
		Target:   convert.KindDocument,
		Method:   convert.MethodTextExtract,
	}

	outcome, err := serverHandler.RunConversion(context.Background(), req, database.JobTypePresentationToPDF)
	if err != nil {
		t.Fatalf("RunConversion: %v", err)
	}
	if outcome.Result == nil || !bytes.HasPrefix(outcome.Result.Output, []byte("%PDF")) {
		t.Fatal("conversion produced no PDF")
	}

	job, err := serverHandler.DB.GetJob(outcome.Job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != database.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", job.Status)
	}
	if job.OutputName != "meeting.pdf" {
		t.Errorf("output name = %q", job.OutputName)
	}

	if serverHandler.Results.Get(outcome.Job.ID.String()) == nil {
		t.Error("result not cached for download")
	}

	// staging directory for this job must be gone
	stagingDir := filepath.Join(serverHandler.ServerConfig.StagingPath, outcome.Job.ID.String())
	if _, err := os.Stat(stagingDir); !os.IsNotExist(err) {
		t.Errorf("staging directory %s was not cleaned up", stagingDir)
	}
}

func TestRunConversionRecordsFailure(t *testing.T) {
	serverHandler := testHandler(t)

	req := convert.Request{
		Input:    []byte("not a presentation"),
		Filename: "junk.pptx",
		Source:   convert.KindPresentation,
		Target:   convert.KindDocument,
		Method:   convert.MethodTextExtract,
	}

	outcome, err := serverHandler.RunConversion(context.Background(), req, database.JobTypePresentationToPDF)
	if err == nil {
		t.Fatal("expected conversion to fail")
	}
	job, dbErr := serverHandler.DB.GetJob(outcome.Job.ID)
	if dbErr != nil {
		t.Fatalf("GetJob: %v", dbErr)
	}
	if job.Status != database.JobStatusFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
	if job.FailureKind != string(convert.UnsupportedInputFormat) {
		t.Errorf("failure kind = %q", job.FailureKind)
	}
}

func uploadRequest(t *testing.T, target, filename string, data []byte, fields map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req, httptest.NewRecorder()
}

func TestConvertPresentationEndpoint(t *testing.T) {
	serverHandler := testHandler(t)
	req, rec := uploadRequest(t, "/api/convert/presentation", "deck.pptx",
		deckFixture(t, "Hello"), map[string]string{"method": "text"})
	c := serverHandler.Echo.NewContext(req, rec)

	if err := serverHandler.ConvertPresentation(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID       string `json:"jobId"`
		Filename    string `json:"filename"`
		Method      string `json:"method"`
		DownloadURL string `json:"downloadUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.Filename != "deck.pdf" || resp.Method != "text" {
		t.Errorf("response = %+v", resp)
	}

	// download what we just converted
	dlReq := httptest.NewRequest(http.MethodGet, "/api/result/"+resp.JobID, nil)
	dlRec := httptest.NewRecorder()
	dlCtx := serverHandler.Echo.NewContext(dlReq, dlRec)
	dlCtx.SetParamNames("id")
	dlCtx.SetParamValues(resp.JobID)
	if err := serverHandler.DownloadResult(dlCtx); err != nil {
		t.Fatalf("download error: %v", err)
	}
	if dlRec.Code != http.StatusOK {
		t.Fatalf("download status = %d", dlRec.Code)
	}
	if ct := dlRec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := dlRec.Header().Get(echo.HeaderContentDisposition); cd == "" {
		t.Error("missing content disposition")
	}
}

func TestConvertPresentationLegacyRejected(t *testing.T) {
	serverHandler := testHandler(t)
	req, rec := uploadRequest(t, "/api/convert/presentation", "old.ppt",
		deckFixture(t, "legacy"), nil)
	c := serverHandler.Echo.NewContext(req, rec)

	if err := serverHandler.ConvertPresentation(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp struct {
		Kind        string `json:"kind"`
		Remediation string `json:"remediation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != string(convert.UnsupportedInputFormat) {
		t.Errorf("kind = %q", resp.Kind)
	}
	if resp.Remediation == "" {
		t.Error("missing remediation advice")
	}
}

func TestConvertDocumentBadDPI(t *testing.T) {
	serverHandler := testHandler(t)
	req, rec := uploadRequest(t, "/api/convert/document", "scan.pdf",
		[]byte("%PDF-1.4"), map[string]string{"dpi": "144"})
	c := serverHandler.Echo.NewContext(req, rec)

	if err := serverHandler.ConvertDocument(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConvertDocumentPopplerMissing(t *testing.T) {
	serverHandler := testHandler(t)
	// point discovery at an empty directory so nothing is found
	serverHandler.ServerConfig.PopplerPath = t.TempDir()

	req, rec := uploadRequest(t, "/api/convert/document", "scan.pdf",
		[]byte("%PDF-1.4"), map[string]string{"dpi": "150", "compression": "lzw"})
	c := serverHandler.Echo.NewContext(req, rec)

	if err := serverHandler.ConvertDocument(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Kind        string `json:"kind"`
		Remediation string `json:"remediation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != string(convert.BackendUnavailable) {
		t.Errorf("kind = %q", resp.Kind)
	}
	if resp.Remediation == "" {
		t.Error("missing install guidance")
	}
}

func TestDownloadResultExpired(t *testing.T) {
	serverHandler := testHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/result/nope", nil)
	rec := httptest.NewRecorder()
	c := serverHandler.Echo.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	if err := serverHandler.DownloadResult(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetRecentJobsEndpoint(t *testing.T) {
	serverHandler := testHandler(t)
	if _, err := serverHandler.DB.CreateJob(database.JobTypePresentationToPDF, "a.pptx", 1, "text"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	c := serverHandler.Echo.NewContext(req, rec)

	if err := serverHandler.GetRecentJobs(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var jobs []database.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Errorf("got %d jobs, want 1", len(jobs))
	}
}

func TestGetAboutInfoNoSecrets(t *testing.T) {
	serverHandler := testHandler(t)
	serverHandler.ServerConfig.RemoteAPIToken = "super-secret-token"
	serverHandler.ServerConfig.PopplerPath = t.TempDir()

	req := httptest.NewRequest(http.MethodGet, "/api/about", nil)
	rec := httptest.NewRecorder()
	c := serverHandler.Echo.NewContext(req, rec)

	if err := serverHandler.GetAboutInfo(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("super-secret-token")) {
		t.Error("about endpoint leaked the remote API token")
	}
	var about map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &about); err != nil {
		t.Fatal(err)
	}
	if _, ok := about["remoteConfigured"]; !ok {
		t.Error("about info missing remoteConfigured flag")
	}
}
