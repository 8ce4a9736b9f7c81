// Package pdf renders PDF pages to raster images for OCR.
package pdf

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/pagelens/docr/internal/domain"
)

// Renderer turns one open PDF document into page images. Close
// releases the underlying document; the renderer is unusable after.
type Renderer interface {
	PageCount() int
	RenderPage(ctx context.Context, pageIndex int, dpi int) (image.Image, error)
	Close() error
}

// FitzRenderer renders pages with MuPDF via go-fitz. MuPDF documents
// are not safe for concurrent page access, so renders serialize on a
// mutex; the pipeline is sequential anyway.
type FitzRenderer struct {
	mu  sync.Mutex
	doc *fitz.Document
	n   int
}

// NewFitzRenderer opens a PDF held in memory. A document that cannot
// be opened, or that has zero pages, is an input error: no page work
// has started yet and none will.
func NewFitzRenderer(pdfBytes []byte) (*FitzRenderer, error) {
	if err := ValidatePDF(pdfBytes); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, domain.InputError("opening PDF document", err)
	}

	n := doc.NumPage()
	if n == 0 {
		_ = doc.Close()
		return nil, domain.InputError("PDF has no pages", nil)
	}

	return &FitzRenderer{doc: doc, n: n}, nil
}

// PageCount returns the number of pages in the document.
func (r *FitzRenderer) PageCount() int { return r.n }

// RenderPage rasterizes the zero-based pageIndex at the given DPI.
func (r *FitzRenderer) RenderPage(ctx context.Context, pageIndex int, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= r.n {
		return nil, domain.PageError(pageIndex+1, fmt.Sprintf("page index out of range [0,%d)", r.n), nil)
	}
	if dpi <= 0 {
		dpi = domain.DefaultDPI
	}

	r.mu.Lock()
	img, err := r.doc.ImageDPI(pageIndex, float64(dpi))
	r.mu.Unlock()
	if err != nil {
		return nil, domain.PageError(pageIndex+1, "rendering page", err)
	}
	return img, nil
}

// Close releases the MuPDF document.
func (r *FitzRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	if err != nil {
		return domain.IOError("closing PDF document", err)
	}
	return nil
}
