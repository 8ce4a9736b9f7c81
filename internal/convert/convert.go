// Package convert renders an ordered list of page results into a
// downloadable document: Markdown, HTML, DOCX or the raw JSON payload.
package convert

import (
	"fmt"

	"github.com/pagelens/docr/internal/domain"
)

// Document is one conversion output. Assets carries extracted images
// that the format references by relative path instead of embedding;
// formats that inline everything leave it empty.
type Document struct {
	Data   []byte
	MIME   string
	Ext    string
	Assets []domain.ExtractedImage
}

// Convert renders pages into the requested format. Conversion is
// deterministic: the same pages and job always produce identical
// bytes. Per-page rendering problems degrade to plain text rather than
// failing the document.
func Convert(pages []domain.PageResult, format domain.Format, job domain.Job) (Document, error) {
	switch format {
	case domain.FormatJSON:
		return toJSON(pages, job)
	case domain.FormatMarkdown:
		return toMarkdown(pages, job)
	case domain.FormatHTML:
		return toHTML(pages, job)
	case domain.FormatDOCX:
		return toDOCX(pages, job)
	default:
		return Document{}, domain.InputError(fmt.Sprintf("unsupported output format %q", format), nil)
	}
}
