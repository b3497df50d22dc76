package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"

	"github.com/fileconv/fileconv/poppler"
)

const (
	infoTimeout   = 15 * time.Second
	renderTimeout = 5 * time.Minute
)

var pagesLineRE = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

// Rasterizer converts a PDF to a multi-page TIFF by rendering every page to
// PNG through poppler and re-encoding the frames. The conversion is all or
// nothing: a single unrendered page fails the whole request.
type Rasterizer struct {
	install poppler.Install
}

func NewRasterizer(install poppler.Install) *Rasterizer {
	return &Rasterizer{install: install}
}

func (r *Rasterizer) Method() Method { return MethodRasterize }

// compressOptions maps a compression name onto the TIFF encoder settings.
// The deflate pair mirrors the two zlib tag assignments: 32946 for the
// old-style scheme and 8 for the Adobe one.
func compressOptions(c Compression) *tiff.Options {
	switch c {
	case CompressionAdobeDeflate:
		return &tiff.Options{Compress: tiff.CompressType_Deflate}
	case CompressionLZW:
		return &tiff.Options{Compress: tiff.CompressType_LZW, Predictor: true}
	case CompressionNone:
		return &tiff.Options{Compress: tiff.CompressType_None}
	default:
		return &tiff.Options{Compress: tiff.CompressType_DeflateOld}
	}
}

func (r *Rasterizer) Convert(ctx context.Context, req Request) (*Result, error) {
	if !r.install.Found {
		return nil, &Failure{
			Kind:        BackendUnavailable,
			Message:     "poppler-utils is not installed",
			Remediation: popplerRemediation,
		}
	}

	dpi := req.Options.DPI
	if dpi == 0 {
		dpi = DefaultDPI
	}
	if !ValidDPI(dpi) {
		return nil, failf(UnsupportedInputFormat, "unsupported resolution %d dpi", dpi)
	}

	workDir := req.Options.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "fileconv-raster-")
		if err != nil {
			return nil, failf(ProcessFailure, "create staging directory: %v", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	inputPath := filepath.Join(workDir, req.Stem()+".pdf")
	if err := os.WriteFile(inputPath, req.Input, 0o644); err != nil {
		return nil, failf(ProcessFailure, "stage input file: %v", err)
	}

	pages, fail := r.pageCount(ctx, inputPath)
	if fail != nil {
		return nil, fail
	}

	prefix := filepath.Join(workDir, "page")
	res := runCommand(ctx, renderTimeout, r.install.Tool, "-png", "-r", strconv.Itoa(dpi), inputPath, prefix)
	switch res.Outcome {
	case cmdTimeout:
		return nil, &Failure{
			Kind:    ProcessFailure,
			Message: fmt.Sprintf("page rendering did not finish within %s", renderTimeout),
			Detail:  string(res.Output),
		}
	case cmdExitError:
		return nil, &Failure{
			Kind:    ProcessFailure,
			Message: fmt.Sprintf("page rendering exited with status %d", res.ExitCode),
			Detail:  string(res.Output),
		}
	case cmdStartError:
		return nil, &Failure{
			Kind:        BackendUnavailable,
			Message:     fmt.Sprintf("could not start %s: %v", r.install.Tool, res.Err),
			Remediation: popplerRemediation,
		}
	}

	framePaths, err := collectFrames(workDir, "page")
	if err != nil {
		return nil, failf(ProcessFailure, "collect rendered pages: %v", err)
	}
	if len(framePaths) != pages {
		return nil, &Failure{
			Kind:    ProcessFailure,
			Message: fmt.Sprintf("rendered %d of %d pages", len(framePaths), pages),
			Detail:  string(res.Output),
		}
	}

	frames := make([]image.Image, 0, len(framePaths))
	opts := make([]*tiff.Options, 0, len(framePaths))
	opt := compressOptions(req.Options.Compression)
	for _, path := range framePaths {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, failf(ProcessFailure, "decode rendered page %s: %v", filepath.Base(path), err)
		}
		frames = append(frames, img)
		opts = append(opts, opt)
	}

	var buf bytes.Buffer
	if err := tiff.EncodeAll(&buf, frames, opts); err != nil {
		return nil, &Failure{
			Kind:    GenerationError,
			Message: "TIFF encoding failed",
			Detail:  err.Error(),
		}
	}
	return &Result{Output: buf.Bytes(), Filename: req.Stem() + ".tiff"}, nil
}

// pageCount asks pdfinfo how many pages the document has. A failure here is
// reported as the backend being unusable rather than a bad document, since
// pdfinfo handles anything poppler can render.
func (r *Rasterizer) pageCount(ctx context.Context, inputPath string) (int, *Failure) {
	res := runCommand(ctx, infoTimeout, r.install.InfoTool(), inputPath)
	if res.Outcome != cmdOK {
		return 0, &Failure{
			Kind:        BackendUnavailable,
			Message:     "could not inspect the document with pdfinfo",
			Remediation: popplerRemediation,
			Detail:      string(res.Output),
		}
	}
	m := pagesLineRE.FindSubmatch(res.Output)
	if m == nil {
		return 0, &Failure{
			Kind:    BackendUnavailable,
			Message: "pdfinfo produced no page count",
			Detail:  string(res.Output),
		}
	}
	pages, err := strconv.Atoi(string(m[1]))
	if err != nil || pages < 1 {
		return 0, &Failure{
			Kind:    BackendUnavailable,
			Message: "pdfinfo produced an unusable page count",
			Detail:  string(res.Output),
		}
	}
	return pages, nil
}

// collectFrames gathers prefix-N.png outputs in page order. Poppler zero-pads
// the numbers for multi-digit page counts, so sorting is numeric on the
// extracted index rather than lexical on the name.
func collectFrames(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type frame struct {
		num  int
		path string
	}
	var frames []frame
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		numPart := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"-"), ".png")
		num, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		frames = append(frames, frame{num: num, path: filepath.Join(dir, name)})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].num < frames[j].num })
	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.path
	}
	return paths, nil
}
