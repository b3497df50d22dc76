package engine

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/fileconv/fileconv/config"
	"github.com/fileconv/fileconv/convert"
	"github.com/fileconv/fileconv/database"
	"github.com/fileconv/fileconv/internal/build"
	"github.com/fileconv/fileconv/poppler"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Results      *ResultCache
}

// maxUploadBytes caps uploads well above any plausible slide deck
const maxUploadBytes = 200 << 20

type conversionResponse struct {
	JobID       string   `json:"jobId"`
	Filename    string   `json:"filename"`
	Method      string   `json:"method"`
	Notices     []string `json:"notices,omitempty"`
	Bytes       int      `json:"bytes"`
	DownloadURL string   `json:"downloadUrl"`
	PreviewURL  string   `json:"previewUrl,omitempty"`
}

type conversionError struct {
	JobID       string `json:"jobId,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Error       string `json:"error"`
	Remediation string `json:"remediation,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// failureStatus maps a classified failure onto an HTTP status
func failureStatus(kind convert.FailureKind) int {
	switch kind {
	case convert.UnsupportedInputFormat:
		return http.StatusUnprocessableEntity
	case convert.MissingDependency, convert.BackendUnavailable:
		return http.StatusServiceUnavailable
	case convert.RemoteServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (serverHandler *ServerHandler) conversionFailed(c echo.Context, jobID string, err error) error {
	if f, ok := convert.AsFailure(err); ok {
		return c.JSON(failureStatus(f.Kind), conversionError{
			JobID:       jobID,
			Kind:        string(f.Kind),
			Error:       f.Message,
			Remediation: f.Remediation,
			Detail:      f.Detail,
		})
	}
	return c.JSON(http.StatusInternalServerError, conversionError{JobID: jobID, Error: err.Error()})
}

// readUpload pulls the uploaded file out of the multipart form
func readUpload(c echo.Context) (name string, data []byte, err error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("no file in upload: %w", err)
	}
	if fileHeader.Size > maxUploadBytes {
		return "", nil, fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()
	data, err = io.ReadAll(file)
	if err != nil {
		return "", nil, err
	}
	return fileHeader.Filename, data, nil
}

// ConvertPresentation accepts a pptx upload and returns the converted PDF
// location. The method form value picks the backend, defaulting to local
// text extraction.
func (serverHandler *ServerHandler) ConvertPresentation(c echo.Context) error {
	name, data, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, conversionError{Error: err.Error()})
	}

	method, ok := convert.ParseMethod(c.FormValue("method"))
	if !ok {
		return c.JSON(http.StatusBadRequest, conversionError{
			Error: fmt.Sprintf("unknown conversion method %q", c.FormValue("method")),
		})
	}

	req := convert.Request{
		Input:    data,
		Filename: name,
		Source:   convert.KindPresentation,
		Target:   convert.KindDocument,
		Method:   method,
		Options: convert.Options{
			RemoteURL:   serverHandler.ServerConfig.RemoteAPIURL,
			RemoteToken: serverHandler.ServerConfig.RemoteAPIToken,
			OfficePath:  serverHandler.ServerConfig.OfficePath,
		},
	}

	outcome, err := serverHandler.RunConversion(c.Request().Context(), req, database.JobTypePresentationToPDF)
	if err != nil {
		jobID := ""
		if outcome != nil && outcome.Job != nil {
			jobID = outcome.Job.ID.String()
		}
		return serverHandler.conversionFailed(c, jobID, err)
	}
	return c.JSON(http.StatusOK, serverHandler.conversionOK(outcome))
}

// ConvertDocument accepts a PDF upload and returns the rendered multi-page
// TIFF location. dpi and compression form values tune the output.
func (serverHandler *ServerHandler) ConvertDocument(c echo.Context) error {
	name, data, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, conversionError{Error: err.Error()})
	}

	dpi := convert.DefaultDPI
	if v := c.FormValue("dpi"); v != "" {
		dpi, err = strconv.Atoi(v)
		if err != nil || !convert.ValidDPI(dpi) {
			return c.JSON(http.StatusBadRequest, conversionError{
				Error: fmt.Sprintf("dpi must be one of %v", convert.DPIChoices),
			})
		}
	}

	compression, ok := convert.ParseCompression(c.FormValue("compression"))
	if !ok {
		return c.JSON(http.StatusBadRequest, conversionError{
			Error: fmt.Sprintf("unknown compression %q", c.FormValue("compression")),
		})
	}

	req := convert.Request{
		Input:    data,
		Filename: name,
		Source:   convert.KindDocument,
		Target:   convert.KindImageSet,
		Method:   convert.MethodRasterize,
		Options: convert.Options{
			DPI:         dpi,
			Compression: compression,
			PopplerPath: serverHandler.ServerConfig.PopplerPath,
		},
	}

	outcome, err := serverHandler.RunConversion(c.Request().Context(), req, database.JobTypeDocumentToTIFF)
	if err != nil {
		jobID := ""
		if outcome != nil && outcome.Job != nil {
			jobID = outcome.Job.ID.String()
		}
		return serverHandler.conversionFailed(c, jobID, err)
	}
	return c.JSON(http.StatusOK, serverHandler.conversionOK(outcome))
}

func (serverHandler *ServerHandler) conversionOK(outcome *ConversionOutcome) conversionResponse {
	jobID := outcome.Job.ID.String()
	resp := conversionResponse{
		JobID:       jobID,
		Filename:    outcome.Result.Filename,
		Method:      string(outcome.MethodUsed),
		Notices:     outcome.Notices,
		Bytes:       len(outcome.Result.Output),
		DownloadURL: "/api/result/" + jobID,
	}
	if cached := serverHandler.Results.Get(jobID); cached != nil && cached.Preview != nil {
		resp.PreviewURL = "/api/result/" + jobID + "/preview"
	}
	return resp
}

// DownloadResult streams a finished conversion back to the browser
func (serverHandler *ServerHandler) DownloadResult(c echo.Context) error {
	id := c.Param("id")
	cached := serverHandler.Results.Get(id)
	if cached == nil {
		return c.JSON(http.StatusNotFound, conversionError{
			Error: "result not available, it may have expired",
		})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, cached.Filename))
	return c.Blob(http.StatusOK, cached.MIME, cached.Data)
}

// PreviewResult serves the first-page PNG preview for a finished conversion
func (serverHandler *ServerHandler) PreviewResult(c echo.Context) error {
	id := c.Param("id")
	cached := serverHandler.Results.Get(id)
	if cached == nil || cached.Preview == nil {
		return c.JSON(http.StatusNotFound, conversionError{
			Error: "no preview available for this result",
		})
	}
	return c.Blob(http.StatusOK, "image/png", cached.Preview)
}

// GetJob returns one job record by ULID
func (serverHandler *ServerHandler) GetJob(c echo.Context) error {
	jobID, err := ulid.Parse(strings.ToUpper(c.Param("id")))
	if err != nil {
		return c.JSON(http.StatusBadRequest, conversionError{Error: "invalid job id"})
	}
	job, err := serverHandler.DB.GetJob(jobID)
	if err != nil {
		return c.JSON(http.StatusNotFound, conversionError{Error: "job not found"})
	}
	return c.JSON(http.StatusOK, job)
}

// GetRecentJobs returns recent jobs newest first, with limit and offset
// query parameters for pagination
func (serverHandler *ServerHandler) GetRecentJobs(c echo.Context) error {
	limit := serverHandler.ServerConfig.RecentJobCount
	if v := c.QueryParam("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	jobs, err := serverHandler.DB.GetRecentJobs(limit, offset)
	if err != nil {
		Logger.Error("Unable to fetch recent jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, conversionError{Error: "unable to fetch jobs"})
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetActiveJobs returns jobs still pending or running
func (serverHandler *ServerHandler) GetActiveJobs(c echo.Context) error {
	jobs, err := serverHandler.DB.GetActiveJobs()
	if err != nil {
		Logger.Error("Unable to fetch active jobs", "error", err)
		return c.JSON(http.StatusInternalServerError, conversionError{Error: "unable to fetch jobs"})
	}
	return c.JSON(http.StatusOK, jobs)
}

// GetAboutInfo reports version and backend availability so the UI can grey
// out what will not work. The remote token itself is never included.
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	install := poppler.Locate()
	if serverHandler.ServerConfig.PopplerPath != "" {
		install = poppler.At(serverHandler.ServerConfig.PopplerPath)
	}

	officeConfigured := false
	if _, fail := convert.NewOfficeConverter(officeOption(serverHandler.ServerConfig)...).Probe(); fail == nil {
		officeConfigured = true
	}

	aboutInfo := map[string]interface{}{
		"version":          build.Version,
		"popplerFound":     install.Found,
		"popplerVerified":  install.Verified,
		"popplerTool":      install.Tool,
		"officeFound":      officeConfigured,
		"remoteConfigured": serverHandler.ServerConfig.RemoteAPIToken != "",
		"remoteURL":        serverHandler.ServerConfig.RemoteAPIURL,
		"dpiChoices":       convert.DPIChoices,
		"compressions":     convert.Compressions,
	}
	return c.JSON(http.StatusOK, aboutInfo)
}

func officeOption(cfg config.ServerConfig) []convert.OfficeOption {
	if cfg.OfficePath != "" {
		return []convert.OfficeOption{convert.WithOfficeBinary(cfg.OfficePath)}
	}
	return nil
}
