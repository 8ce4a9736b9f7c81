// Package docr is the public client for the document OCR pipeline:
// single images or multi-page PDFs in, structured text, bounding boxes
// and converted documents out.
package docr

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/pagelens/docr/internal/convert"
	"github.com/pagelens/docr/internal/domain"
	"github.com/pagelens/docr/internal/orchestrate"
	"github.com/pagelens/docr/internal/page"
	"github.com/pagelens/docr/internal/tiling"
	"github.com/pagelens/docr/internal/vision"
)

// Re-exported pipeline types; callers never import internal packages.
type (
	Job             = domain.Job
	Mode            = domain.Mode
	Format          = domain.Format
	PageResult      = domain.PageResult
	BoundingBox     = domain.BoundingBox
	ExtractedImage  = domain.ExtractedImage
	Dims            = domain.Dims
	Progress        = domain.Progress
	StreamEvent     = domain.StreamEvent
	EventType       = domain.EventType
	CompletePayload = domain.CompletePayload
	Document        = convert.Document
	Logger          = domain.Logger
)

const (
	FormatJSON     = domain.FormatJSON
	FormatMarkdown = domain.FormatMarkdown
	FormatHTML     = domain.FormatHTML
	FormatDOCX     = domain.FormatDOCX
)

const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// DefaultJob returns the standard processing configuration.
func DefaultJob() Job { return domain.DefaultJob() }

// ParseMode validates a mode string from a CLI flag or API field.
func ParseMode(s string) (Mode, error) { return domain.ParseMode(s) }

// ParseFormat validates an output format string.
func ParseFormat(s string) (Format, error) { return domain.ParseFormat(s) }

// Metadata summarizes how a result set was produced.
type Metadata struct {
	Mode      Mode   `json:"mode"`
	Grounding bool   `json:"grounding"`
	DPI       int    `json:"dpi"`
	BaseSize  int    `json:"base_size"`
	TileSize  int    `json:"tile_size"`
	CropMode  bool   `json:"crop_mode"`
	Duration  string `json:"duration"`
}

// ImageResult is the single-image response.
type ImageResult struct {
	Text     string        `json:"text"`
	RawText  string        `json:"raw_text"`
	Boxes    []BoundingBox `json:"boxes"`
	Images   []ExtractedImage
	Dims     Dims     `json:"image_dims"`
	Metadata Metadata `json:"metadata"`
}

// PDFResult is the aggregated PDF response.
type PDFResult struct {
	TotalPages int          `json:"total_pages"`
	Pages      []PageResult `json:"pages"`
	Metadata   Metadata     `json:"metadata"`
}

// Config configures a Client. InferURL is the only required field.
type Config struct {
	InferURL string
	Token    string
	Timeout  time.Duration
	Logger   *Logger

	// Backend overrides the HTTP inference backend; used to embed the
	// pipeline over an in-process model or in tests.
	Backend vision.Backend
}

// Client runs OCR jobs against one inference backend. Safe for
// concurrent use; each call is an independent job.
type Client struct {
	backend vision.Backend
	orch    *orchestrate.Orchestrator
	log     *Logger
}

// NewClient builds a client from the environment: DOCR_INFER_URL,
// DOCR_INFER_TOKEN and DOCR_MODEL_TIMEOUT (seconds). A .env file in
// the working directory is honored when present.
func NewClient() (*Client, error) {
	_ = godotenv.Load()

	url := os.Getenv("DOCR_INFER_URL")
	if url == "" {
		return nil, domain.ConfigError("DOCR_INFER_URL not set", nil)
	}

	var timeout time.Duration
	if v := os.Getenv("DOCR_MODEL_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, domain.ConfigError("DOCR_MODEL_TIMEOUT must be a positive integer of seconds", err)
		}
		timeout = time.Duration(secs) * time.Second
	}

	return NewClientWithConfig(Config{
		InferURL: url,
		Token:    os.Getenv("DOCR_INFER_TOKEN"),
		Timeout:  timeout,
	})
}

// NewClientWithConfig builds a client from explicit configuration.
func NewClientWithConfig(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = domain.DefaultLogger()
	}

	backend := cfg.Backend
	if backend == nil {
		var err error
		backend, err = vision.NewHTTPBackend(vision.HTTPBackendConfig{
			URL:     cfg.InferURL,
			Token:   cfg.Token,
			Timeout: cfg.Timeout,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
	}

	processor := &page.Processor{
		Backend: backend,
		Engine:  tiling.Engine{},
		Logger:  log,
	}
	return &Client{
		backend: backend,
		orch:    &orchestrate.Orchestrator{Processor: processor, Logger: log},
		log:     log,
	}, nil
}

// ProcessImage OCRs a single image (PNG or JPEG bytes). Unlike the PDF
// path there is no other page to fall back on, so any page-level
// failure is returned as the error.
func (c *Client) ProcessImage(ctx context.Context, imageBytes []byte, job Job) (*ImageResult, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, domain.InputError("decoding image", err)
	}
	return c.processDecoded(ctx, img, job)
}

// ProcessDecodedImage is ProcessImage for an already decoded image.
func (c *Client) ProcessDecodedImage(ctx context.Context, img image.Image, job Job) (*ImageResult, error) {
	return c.processDecoded(ctx, img, job)
}

func (c *Client) processDecoded(ctx context.Context, img image.Image, job Job) (*ImageResult, error) {
	job = job.Normalize()
	start := time.Now()

	result, err := c.orch.Processor.Process(ctx, img, 1, job)
	if err != nil {
		return nil, err
	}

	return &ImageResult{
		Text:     result.CleanedText,
		RawText:  result.RawText,
		Boxes:    result.Boxes,
		Images:   result.Images,
		Dims:     result.Dims,
		Metadata: c.metadata(job, time.Since(start)),
	}, nil
}

// ProcessPDF starts a streaming PDF job. Setup failures (corrupt file,
// zero pages, invalid DPI) return immediately; after that, events
// arrive on the channel until a terminal EventComplete or EventError,
// then it closes. Page failures are embedded in their PageResult and
// do not terminate the stream.
func (c *Client) ProcessPDF(ctx context.Context, pdfBytes []byte, job Job) (<-chan StreamEvent, error) {
	return c.orch.Run(ctx, pdfBytes, job)
}

// CollectPDF runs a PDF job to completion and returns the ordered
// result list.
func (c *Client) CollectPDF(ctx context.Context, pdfBytes []byte, job Job) (*PDFResult, error) {
	job = job.Normalize()
	start := time.Now()

	pages, err := c.orch.Process(ctx, pdfBytes, job)
	if err != nil {
		return nil, err
	}
	return &PDFResult{
		TotalPages: len(pages),
		Pages:      pages,
		Metadata:   c.metadata(job, time.Since(start)),
	}, nil
}

// Convert renders page results into the requested document format.
func (c *Client) Convert(pages []PageResult, format Format, job Job) (Document, error) {
	return convert.Convert(pages, format, job.Normalize())
}

// Close releases client resources. Present for API symmetry; the
// HTTP backend holds nothing that outlives its requests.
func (c *Client) Close() error { return nil }

func (c *Client) metadata(job Job, elapsed time.Duration) Metadata {
	return Metadata{
		Mode:      job.Mode,
		Grounding: job.Grounding || job.Mode.RequiresGrounding(),
		DPI:       job.DPI,
		BaseSize:  job.BaseSize,
		TileSize:  job.TileSize,
		CropMode:  job.CropMode,
		Duration:  elapsed.Round(time.Millisecond).String(),
	}
}
