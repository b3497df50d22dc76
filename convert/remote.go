package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// RemoteConverter uploads the presentation to an external conversion API and
// returns the PDF it sends back. The token is carried in the Authorization
// header and kept out of every error message and log line.
type RemoteConverter struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewRemoteConverter(url, token string) *RemoteConverter {
	return &RemoteConverter{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (r *RemoteConverter) Method() Method { return MethodRemoteAPI }

func (r *RemoteConverter) Convert(ctx context.Context, req Request) (*Result, error) {
	if f := rejectLegacyPresentation(req); f != nil {
		return nil, f
	}
	if r.Token == "" {
		return nil, failf(RemoteServiceError, "no API token configured for remote conversion")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, failf(RemoteServiceError, "build upload request: %v", err)
	}
	if _, err := part.Write(req.Input); err != nil {
		return nil, failf(RemoteServiceError, "build upload request: %v", err)
	}
	if err := mw.Close(); err != nil {
		return nil, failf(RemoteServiceError, "build upload request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, &body)
	if err != nil {
		return nil, failf(RemoteServiceError, "build upload request: %v", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+r.Token)

	resp, err := r.Client.Do(httpReq)
	if err != nil {
		return nil, &Failure{
			Kind:        RemoteServiceError,
			Message:     fmt.Sprintf("remote conversion service unreachable: %v", err),
			Remediation: "Check network connectivity and the configured service URL, or use another conversion method.",
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Failure{
			Kind:    RemoteServiceError,
			Message: fmt.Sprintf("remote conversion service returned %s", resp.Status),
			Detail:  string(detail),
		}
	}

	output, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failf(RemoteServiceError, "read remote response: %v", err)
	}
	if len(output) == 0 {
		return nil, &Failure{
			Kind:    MissingOutputArtifact,
			Message: "remote conversion service returned an empty document",
		}
	}
	return &Result{Output: output, Filename: req.Stem() + ".pdf"}, nil
}
