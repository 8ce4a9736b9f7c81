// Package domain holds the shared data model for the OCR pipeline:
// jobs, page results, bounding boxes, progress and stream events.
package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects the instruction the vision model receives.
type Mode string

const (
	ModePlainOCR       Mode = "plain_ocr"
	ModeMarkdown       Mode = "markdown"
	ModeTablesCSV      Mode = "tables_csv"
	ModeTablesMarkdown Mode = "tables_md"
	ModeKeyValueJSON   Mode = "kv_json"
	ModeFigureChart    Mode = "figure_chart"
	ModeFindRef        Mode = "find_ref"
	ModeLayoutMap      Mode = "layout_map"
	ModePIIRedact      Mode = "pii_redact"
	ModeMultilingual   Mode = "multilingual"
	ModeDescribe       Mode = "describe"
	ModeFreeform       Mode = "freeform"
)

var allModes = map[Mode]bool{
	ModePlainOCR: true, ModeMarkdown: true, ModeTablesCSV: true,
	ModeTablesMarkdown: true, ModeKeyValueJSON: true, ModeFigureChart: true,
	ModeFindRef: true, ModeLayoutMap: true, ModePIIRedact: true,
	ModeMultilingual: true, ModeDescribe: true, ModeFreeform: true,
}

// ParseMode validates a mode string from the outside world.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.TrimSpace(strings.ToLower(s)))
	if m == "" {
		return ModePlainOCR, nil
	}
	if !allModes[m] {
		return "", InputError(fmt.Sprintf("unsupported mode %q", s), nil)
	}
	return m, nil
}

// RequiresGrounding reports whether the mode only makes sense with
// grounding tags enabled, regardless of the job's grounding flag.
func (m Mode) RequiresGrounding() bool {
	switch m {
	case ModeFindRef, ModeLayoutMap, ModePIIRedact:
		return true
	}
	return false
}

// Format identifies an output document format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

// ParseFormat validates a format string from the outside world.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimSpace(strings.ToLower(s)))
	if f == "" {
		return FormatJSON, nil
	}
	switch f {
	case FormatJSON, FormatMarkdown, FormatHTML, FormatDOCX:
		return f, nil
	}
	return "", InputError(fmt.Sprintf("unsupported output format %q", s), nil)
}

// Dims is the pixel size of an original, untiled image.
type Dims struct {
	W int `json:"w"`
	H int `json:"h"`
}

// BoundingBox is a grounded detection in original-image pixel space.
// Box holds [x1, y1, x2, y2] with 0 <= x1 <= x2 <= W and 0 <= y1 <= y2 <= H.
type BoundingBox struct {
	Label string `json:"label"`
	Box   [4]int `json:"box"`
}

// ExtractedImage is a raster region lifted out of a page, kept as raw
// encoded bytes internally; base64 happens only at the JSON boundary.
type ExtractedImage struct {
	Name string `json:"name"`
	Data []byte `json:"-"`
}

// Base64 returns the transport encoding of the image bytes.
func (e ExtractedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// MarshalJSON encodes the image bytes as base64 so JSON output carries
// the full structured result.
func (e ExtractedImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
		Data string `json:"data"`
	}{Name: e.Name, Data: e.Base64()})
}

// PageResult is the immutable outcome of processing one page. A
// non-empty Err marks a page-level failure; the page keeps its slot so
// numbering stays contiguous across partial failures.
type PageResult struct {
	PageNumber  int              `json:"page_number"`
	RawText     string           `json:"raw_text"`
	CleanedText string           `json:"text"`
	Boxes       []BoundingBox    `json:"boxes"`
	Images      []ExtractedImage `json:"images,omitempty"`
	Dims        Dims             `json:"image_dims"`
	Err         string           `json:"error,omitempty"`
}

// Failed reports whether this page carries a page-level error marker.
func (p PageResult) Failed() bool { return p.Err != "" }

// Model-side processing defaults.
const (
	DefaultDPI      = 144
	DefaultBaseSize = 1024
	DefaultTileSize = 640
)

// Job captures the processing configuration for one request. It is
// value-copied everywhere and never mutated mid-job.
type Job struct {
	Mode           Mode
	Prompt         string
	FindTerm       string
	Schema         string
	Format         Format
	Grounding      bool
	IncludeCaption bool
	ExtractImages  bool
	InlineImages   bool
	CropMode       bool
	DPI            int
	BaseSize       int
	TileSize       int
}

// DefaultJob returns a job with the model's documented defaults.
func DefaultJob() Job {
	return Job{
		Mode:     ModePlainOCR,
		Format:   FormatJSON,
		CropMode: true,
		DPI:      DefaultDPI,
		BaseSize: DefaultBaseSize,
		TileSize: DefaultTileSize,
	}
}

// Normalize fills zero values with defaults and returns the result.
func (j Job) Normalize() Job {
	if j.Mode == "" {
		j.Mode = ModePlainOCR
	}
	if j.Format == "" {
		j.Format = FormatJSON
	}
	if j.DPI <= 0 {
		j.DPI = DefaultDPI
	}
	if j.BaseSize <= 0 {
		j.BaseSize = DefaultBaseSize
	}
	if j.TileSize <= 0 {
		j.TileSize = DefaultTileSize
	}
	return j
}

// Progress is the monotone pages_completed / total_pages counter.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent maps progress onto 0-100 for streaming to callers.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Completed) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Done reports whether the job reached its terminal progress state.
func (p Progress) Done() bool { return p.Total > 0 && p.Completed == p.Total }
