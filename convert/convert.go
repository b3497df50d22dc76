// Package convert implements the multi-strategy document conversion pipeline:
// presentation to PDF through one of three backends (local text extraction, a
// headless LibreOffice subprocess, or a remote conversion API) and PDF to
// multi-page TIFF through the poppler rasterization toolset. The package is
// pure with respect to UI state: a Request goes in, a Result or a classified
// Failure comes out.
package convert

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind identifies a document family on either side of a conversion.
type Kind string

const (
	KindPresentation Kind = "presentation"
	KindDocument     Kind = "document"
	KindImageSet     Kind = "imageset"
)

// Method names a conversion backend.
type Method string

const (
	MethodTextExtract Method = "text"
	MethodOfficeSuite Method = "office"
	MethodRemoteAPI   Method = "remote"
	MethodRasterize   Method = "rasterize"
)

// ParseMethod validates a user-supplied presentation conversion method,
// defaulting to text extraction.
func ParseMethod(s string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodTextExtract:
		return MethodTextExtract, true
	case MethodOfficeSuite:
		return MethodOfficeSuite, true
	case MethodRemoteAPI:
		return MethodRemoteAPI, true
	default:
		return "", false
	}
}

// Compression names a TIFF compression scheme. The two deflate variants
// correspond to the old-style (tag 32946) and Adobe-style (tag 8) zlib
// encodings.
type Compression string

const (
	CompressionDeflate      Compression = "deflate"
	CompressionAdobeDeflate Compression = "adobe-deflate"
	CompressionLZW          Compression = "lzw"
	CompressionNone         Compression = "none"
)

// Compressions lists the selectable schemes in display order.
var Compressions = []Compression{
	CompressionDeflate,
	CompressionAdobeDeflate,
	CompressionLZW,
	CompressionNone,
}

// ParseCompression validates a user-supplied compression name, defaulting to
// deflate.
func ParseCompression(s string) (Compression, bool) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressionDeflate:
		return CompressionDeflate, true
	case CompressionAdobeDeflate:
		return CompressionAdobeDeflate, true
	case CompressionLZW:
		return CompressionLZW, true
	case CompressionNone:
		return CompressionNone, true
	default:
		return "", false
	}
}

// DPIChoices are the selectable rasterization resolutions.
var DPIChoices = []int{72, 96, 150, 200, 250, 300, 400, 500, 600}

// DefaultDPI is the recommended resolution for most uses.
const DefaultDPI = 300

// ValidDPI reports whether dpi is one of the selectable resolutions.
func ValidDPI(dpi int) bool {
	for _, d := range DPIChoices {
		if d == dpi {
			return true
		}
	}
	return false
}

// Options carries per-request conversion parameters. The remote token is a
// secret and must never be logged.
type Options struct {
	DPI         int
	Compression Compression
	RemoteURL   string
	RemoteToken string `json:"-"`
	OfficePath  string // explicit soffice binary, empty means PATH lookup
	PopplerPath string // explicit poppler bin directory, empty means discovery
	WorkDir     string // orchestrator-owned staging dir, empty means the backend stages for itself
}

// Request describes one conversion. It is immutable once constructed and
// discarded after the result is handed back.
type Request struct {
	Input    []byte
	Filename string
	Source   Kind
	Target   Kind
	Method   Method
	Options  Options
}

// Stem returns the input filename without directory or extension, used to
// name the output artifact.
func (r Request) Stem() string {
	base := filepath.Base(r.Filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "converted"
	}
	return stem
}

// Result is a completed conversion: complete, valid output bytes and the
// artifact filename. Partial output is never returned.
type Result struct {
	Output   []byte
	Filename string
}

// Backend converts a request or fails with a classified *Failure.
type Backend interface {
	Method() Method
	Convert(ctx context.Context, req Request) (*Result, error)
}

// legacyMagic is the OLE compound-file signature used by the binary
// PowerPoint 97-2003 format.
var legacyMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}

// rejectLegacyPresentation reports the classified failure every presentation
// backend returns for the binary .ppt format, before any external call.
func rejectLegacyPresentation(req Request) *Failure {
	ext := strings.ToLower(filepath.Ext(req.Filename))
	isLegacy := ext == ".ppt"
	if !isLegacy && len(req.Input) >= len(legacyMagic) {
		isLegacy = string(req.Input[:len(legacyMagic)]) == string(legacyMagic)
	}
	if !isLegacy {
		return nil
	}
	return &Failure{
		Kind:        UnsupportedInputFormat,
		Message:     "the .ppt format (PowerPoint 97-2003) is not supported",
		Remediation: "Save the presentation as .pptx and try again.",
	}
}
