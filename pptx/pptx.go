// Package pptx reads the text content of Office Open XML presentations. It
// walks the slide parts of the zip container and pulls paragraph text out of
// the DrawingML markup, ignoring layout, styling and media entirely.
package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const drawingNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

var slidePartRE = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Slide holds the visible text of one slide, one entry per paragraph.
type Slide struct {
	Paragraphs []string
}

// Presentation is the text skeleton of a .pptx file in slide order.
type Presentation struct {
	Slides []Slide
}

// Parse reads a .pptx container from memory. It fails if the bytes are not a
// zip archive or if the archive has no slide parts, since either means the
// input is not a presentation.
func Parse(data []byte) (*Presentation, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a pptx container: %w", err)
	}

	type slidePart struct {
		num  int
		file *zip.File
	}
	var parts []slidePart
	for _, f := range zr.File {
		m := slidePartRE.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		parts = append(parts, slidePart{num: num, file: f})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no slides found in presentation")
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].num < parts[j].num })

	pres := &Presentation{}
	for _, part := range parts {
		rc, err := part.file.Open()
		if err != nil {
			return nil, fmt.Errorf("open slide %d: %w", part.num, err)
		}
		slide, err := parseSlide(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse slide %d: %w", part.num, err)
		}
		pres.Slides = append(pres.Slides, slide)
	}
	return pres, nil
}

// parseSlide collects paragraph text from one slide part. Runs inside an
// <a:p> concatenate, an <a:br> becomes a paragraph break, and paragraphs
// that end up empty are dropped.
func parseSlide(r io.Reader) (Slide, error) {
	dec := xml.NewDecoder(r)
	var slide Slide
	var para strings.Builder
	inParagraph := false
	inText := false

	flush := func() {
		text := strings.TrimSpace(para.String())
		if text != "" {
			slide.Paragraphs = append(slide.Paragraphs, text)
		}
		para.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Slide{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inParagraph = true
			case "t":
				inText = true
			case "br":
				if inParagraph {
					flush()
				}
			}
		case xml.EndElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				flush()
				inParagraph = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inParagraph && inText {
				para.Write(t)
			}
		}
	}
	return slide, nil
}
