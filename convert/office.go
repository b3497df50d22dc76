package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// officeBinaryNames are the LibreOffice launchers probed on PATH, in order.
var officeBinaryNames = []string{"soffice", "libreoffice"}

// lookPath is swapped out by tests.
var lookPath = exec.LookPath

const defaultOfficeTimeout = 60 * time.Second

// OfficeConverter shells out to a headless LibreOffice to produce a
// high-fidelity PDF rendering of the presentation.
type OfficeConverter struct {
	binary  string // explicit path, empty means PATH discovery
	timeout time.Duration
}

type OfficeOption func(*OfficeConverter)

// WithOfficeBinary pins the soffice executable instead of searching PATH.
func WithOfficeBinary(path string) OfficeOption {
	return func(o *OfficeConverter) { o.binary = path }
}

// WithOfficeTimeout overrides the subprocess deadline.
func WithOfficeTimeout(d time.Duration) OfficeOption {
	return func(o *OfficeConverter) { o.timeout = d }
}

func NewOfficeConverter(opts ...OfficeOption) *OfficeConverter {
	o := &OfficeConverter{timeout: defaultOfficeTimeout}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OfficeConverter) Method() Method { return MethodOfficeSuite }

// Probe resolves the LibreOffice launcher or reports a missing dependency
// with install guidance. It only checks the filesystem, nothing is run.
func (o *OfficeConverter) Probe() (string, *Failure) {
	if o.binary != "" {
		if _, err := os.Stat(o.binary); err != nil {
			return "", &Failure{
				Kind:        MissingDependency,
				Message:     fmt.Sprintf("configured office binary %s not found", o.binary),
				Remediation: officeRemediation,
			}
		}
		return o.binary, nil
	}
	for _, name := range officeBinaryNames {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", &Failure{
		Kind:        MissingDependency,
		Message:     "LibreOffice is not installed or not on PATH",
		Remediation: officeRemediation,
	}
}

func (o *OfficeConverter) Convert(ctx context.Context, req Request) (*Result, error) {
	if f := rejectLegacyPresentation(req); f != nil {
		return nil, f
	}

	binary, fail := o.Probe()
	if fail != nil {
		return nil, fail
	}

	workDir := req.Options.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "fileconv-office-")
		if err != nil {
			return nil, failf(ProcessFailure, "create staging directory: %v", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	inputPath := filepath.Join(workDir, req.Stem()+".pptx")
	if err := os.WriteFile(inputPath, req.Input, 0o644); err != nil {
		return nil, failf(ProcessFailure, "stage input file: %v", err)
	}

	res := runCommand(ctx, o.timeout, binary,
		"--headless", "--norestore", "--convert-to", "pdf", "--outdir", workDir, inputPath)
	switch res.Outcome {
	case cmdTimeout:
		return nil, &Failure{
			Kind:    ProcessFailure,
			Message: fmt.Sprintf("office conversion did not finish within %s", o.timeout),
			Detail:  string(res.Output),
		}
	case cmdExitError:
		return nil, &Failure{
			Kind:    ProcessFailure,
			Message: fmt.Sprintf("office conversion exited with status %d", res.ExitCode),
			Detail:  string(res.Output),
		}
	case cmdStartError:
		return nil, &Failure{
			Kind:        MissingDependency,
			Message:     fmt.Sprintf("could not start %s: %v", binary, res.Err),
			Remediation: officeRemediation,
		}
	}

	outputPath := filepath.Join(workDir, req.Stem()+".pdf")
	output, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, &Failure{
			Kind:    MissingOutputArtifact,
			Message: "office conversion reported success but produced no PDF",
			Detail:  string(res.Output),
		}
	}
	return &Result{Output: output, Filename: req.Stem() + ".pdf"}, nil
}
