package convert

import (
	"fmt"

	"github.com/fileconv/fileconv/poppler"
)

// Plan is a resolved conversion strategy: the backend that will run plus any
// notices about substitutions made while choosing it.
type Plan struct {
	Method  Method
	Backend Backend
	Notices []string
}

// Select resolves a request to a concrete backend. Selection never probes the
// outside world beyond backend discovery, so an unavailable tool surfaces as
// a failure from Convert, not from here. The one exception is the remote
// method: without a token it falls back to the office suite immediately,
// recording a notice, because a remote call without credentials can never
// succeed.
func Select(req Request) (*Plan, error) {
	switch {
	case req.Source == KindPresentation && req.Target == KindDocument:
		return selectPresentation(req)
	case req.Source == KindDocument && req.Target == KindImageSet:
		return selectDocument(req)
	default:
		return nil, failf(UnsupportedInputFormat, "no conversion from %s to %s", req.Source, req.Target)
	}
}

func selectPresentation(req Request) (*Plan, error) {
	switch req.Method {
	case MethodTextExtract:
		return &Plan{Method: MethodTextExtract, Backend: &TextExtractor{}}, nil
	case MethodOfficeSuite:
		return &Plan{Method: MethodOfficeSuite, Backend: NewOfficeConverter(officeOptions(req)...)}, nil
	case MethodRemoteAPI:
		if req.Options.RemoteToken == "" {
			return &Plan{
				Method:  MethodOfficeSuite,
				Backend: NewOfficeConverter(officeOptions(req)...),
				Notices: []string{"remote conversion requires an API token; using the office suite instead"},
			}, nil
		}
		return &Plan{Method: MethodRemoteAPI, Backend: NewRemoteConverter(req.Options.RemoteURL, req.Options.RemoteToken)}, nil
	default:
		return nil, failf(UnsupportedInputFormat, "unknown conversion method %q", req.Method)
	}
}

func selectDocument(req Request) (*Plan, error) {
	install := poppler.Locate()
	if req.Options.PopplerPath != "" {
		install = poppler.At(req.Options.PopplerPath)
	}
	return &Plan{Method: MethodRasterize, Backend: NewRasterizer(install)}, nil
}

func officeOptions(req Request) []OfficeOption {
	var opts []OfficeOption
	if req.Options.OfficePath != "" {
		opts = append(opts, WithOfficeBinary(req.Options.OfficePath))
	}
	return opts
}

func (p *Plan) String() string {
	return fmt.Sprintf("plan{method=%s notices=%d}", p.Method, len(p.Notices))
}
