// Package orchestrate drives a multi-page PDF through the OCR
// pipeline: render each page in order, process it, and stream progress
// to the caller.
package orchestrate

import (
	"context"
	"fmt"
	"image"

	"github.com/pagelens/docr/internal/domain"
	"github.com/pagelens/docr/internal/page"
	"github.com/pagelens/docr/internal/pdf"
)

// RendererFactory opens a renderer over raw PDF bytes. Swapped out in
// tests for a stub that needs no MuPDF.
type RendererFactory func(pdfBytes []byte) (pdf.Renderer, error)

// Orchestrator runs whole-document jobs. Processor handles the per-page
// work; OpenRenderer defaults to the MuPDF-backed renderer.
type Orchestrator struct {
	Processor    *page.Processor
	OpenRenderer RendererFactory
	Logger       *domain.Logger
}

// eventBuffer sizes the stream channel so a slow consumer does not
// stall page work for a typical document.
const eventBuffer = 64

// Run starts processing pdfBytes and returns the event stream. Fatal
// setup problems (corrupt PDF, zero pages, bad DPI) are returned
// immediately; everything after that arrives as events. The channel
// closes after a terminal EventComplete or EventError.
//
// Pages are processed strictly in source order. A failed page is
// recorded with an error marker and processing continues; only
// cancellation or setup failure aborts the run.
func (o *Orchestrator) Run(ctx context.Context, pdfBytes []byte, job domain.Job) (<-chan domain.StreamEvent, error) {
	job = job.Normalize()
	if err := pdf.ValidateDPI(job.DPI); err != nil {
		return nil, err
	}

	open := o.OpenRenderer
	if open == nil {
		open = func(b []byte) (pdf.Renderer, error) { return pdf.NewFitzRenderer(b) }
	}
	renderer, err := open(pdfBytes)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.StreamEvent, eventBuffer)
	go func() {
		defer close(events)
		defer renderer.Close()
		o.process(ctx, renderer, job, events)
	}()
	return events, nil
}

func (o *Orchestrator) process(ctx context.Context, renderer pdf.Renderer, job domain.Job, events chan<- domain.StreamEvent) {
	log := o.Logger.OrNop()
	total := renderer.PageCount()

	if !emit(ctx, events, domain.StreamEvent{Type: domain.EventStart, Payload: total}) {
		return
	}
	log.Info().Int("pages", total).Str("mode", string(job.Mode)).Msg("document processing started")

	results := make([]domain.PageResult, 0, total)
	for i := 0; i < total; i++ {
		pageNum := i + 1
		if ctx.Err() != nil {
			emit(context.Background(), events, errorEvent(ctx.Err()))
			return
		}
		if !emit(ctx, events, domain.StreamEvent{Type: domain.EventPageProcessing, Page: pageNum}) {
			return
		}

		result := o.processPage(ctx, renderer, pageNum, job)
		if ctx.Err() != nil {
			emit(context.Background(), events, errorEvent(ctx.Err()))
			return
		}
		if result.Failed() {
			log.Warn().Int("page", pageNum).Str("error", result.Err).Msg("page failed, continuing")
		}
		results = append(results, result)

		progress := domain.Progress{Completed: pageNum, Total: total}
		if !emit(ctx, events, domain.StreamEvent{
			Type:     domain.EventPageComplete,
			Page:     pageNum,
			Progress: &progress,
			Payload:  result,
		}) {
			return
		}
	}

	log.Info().Int("pages", total).Msg("document processing complete")
	emit(ctx, events, domain.StreamEvent{
		Type:    domain.EventComplete,
		Payload: domain.CompletePayload{Pages: results},
	})
}

// processPage renders and OCRs one page. Failures become an
// error-marked result so the document keeps its page numbering.
func (o *Orchestrator) processPage(ctx context.Context, renderer pdf.Renderer, pageNum int, job domain.Job) domain.PageResult {
	img, err := renderer.RenderPage(ctx, pageNum-1, job.DPI)
	if err != nil {
		return failedPage(pageNum, err)
	}

	result, err := o.Processor.Process(ctx, img, pageNum, job)
	if err != nil {
		res := failedPage(pageNum, err)
		if b := img.Bounds(); !b.Empty() {
			res.Dims = domain.Dims{W: b.Dx(), H: b.Dy()}
		}
		return res
	}
	return result
}

func failedPage(pageNum int, err error) domain.PageResult {
	return domain.PageResult{
		PageNumber: pageNum,
		Err:        fmt.Sprintf("page %d: %v", pageNum, err),
	}
}

func errorEvent(err error) domain.StreamEvent {
	return domain.StreamEvent{Type: domain.EventError, Payload: err.Error()}
}

// emit delivers an event unless the caller has gone away.
func emit(ctx context.Context, events chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Process drains a Run stream into the final ordered result list. It
// is the non-streaming convenience used by the PDF collection path.
func (o *Orchestrator) Process(ctx context.Context, pdfBytes []byte, job domain.Job) ([]domain.PageResult, error) {
	events, err := o.Run(ctx, pdfBytes, job)
	if err != nil {
		return nil, err
	}

	for ev := range events {
		switch ev.Type {
		case domain.EventComplete:
			payload, ok := ev.Payload.(domain.CompletePayload)
			if !ok {
				return nil, domain.InputError("malformed completion payload", nil)
			}
			return payload.Pages, nil
		case domain.EventError:
			msg, _ := ev.Payload.(string)
			return nil, fmt.Errorf("document processing failed: %s", msg)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("event stream ended without completion")
}

// RenderFirstPage rasterizes page 1 only; the single-image path uses
// it when handed a PDF instead of an image.
func RenderFirstPage(ctx context.Context, pdfBytes []byte, dpi int) (image.Image, error) {
	renderer, err := pdf.NewFitzRenderer(pdfBytes)
	if err != nil {
		return nil, err
	}
	defer renderer.Close()
	return renderer.RenderPage(ctx, 0, dpi)
}
