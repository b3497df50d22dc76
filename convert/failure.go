package convert

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a conversion could not produce output.
type FailureKind string

const (
	// UnsupportedInputFormat means the input is in a format no backend can
	// convert, such as the legacy binary .ppt presentation format.
	UnsupportedInputFormat FailureKind = "unsupported_input_format"
	// MissingDependency means a required external program or library is not
	// installed on this host.
	MissingDependency FailureKind = "missing_dependency"
	// BackendUnavailable means the rasterization toolset could not be
	// discovered in any known location.
	BackendUnavailable FailureKind = "backend_unavailable"
	// ProcessFailure means an external subprocess exited non-zero or was
	// killed by its timeout.
	ProcessFailure FailureKind = "process_failure"
	// MissingOutputArtifact means a subprocess reported success but the
	// expected output file was not found afterwards.
	MissingOutputArtifact FailureKind = "missing_output_artifact"
	// RemoteServiceError means the remote conversion API returned a
	// non-success HTTP response.
	RemoteServiceError FailureKind = "remote_service_error"
	// GenerationError means document assembly failed internally.
	GenerationError FailureKind = "generation_error"
	// PreviewUnavailable is non-fatal: the authoritative output exists but a
	// display preview could not be rendered.
	PreviewUnavailable FailureKind = "preview_unavailable"
)

// Failure is a classified conversion failure. It is returned as the error
// value from every backend so callers can branch on Kind without string
// matching. Remediation carries install guidance for environmental failures;
// Detail carries a diagnostic trace and is only populated for internal
// generation errors, never for an expected missing toolset.
type Failure struct {
	Kind        FailureKind
	Message     string
	Remediation string
	Detail      string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// AsFailure unwraps err into a classified Failure if it is one.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Install guidance shown to users when an external toolset is absent. These
// are expected configuration states, so they come with remediation text
// instead of a diagnostic trace.
const popplerRemediation = `Install Poppler:
  - macOS:          brew install poppler
  - Debian/Ubuntu:  sudo apt-get install poppler-utils
  - Windows:        download a release from the poppler-windows project
or set POPPLER_PATH to the directory containing pdftoppm.`

const officeRemediation = `Install LibreOffice:
  - macOS:          brew install --cask libreoffice
  - Debian/Ubuntu:  sudo apt-get install libreoffice
  - Windows:        https://www.libreoffice.org/download/
or set SOFFICE_PATH to the soffice binary.`
