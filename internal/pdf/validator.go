package pdf

import (
	"bytes"
	"fmt"

	"github.com/pagelens/docr/internal/domain"
)

// maxPDFSize rejects uploads no renderer should be asked to hold in
// memory.
const maxPDFSize = 200 * 1024 * 1024

var pdfMagic = []byte("%PDF-")

// ValidatePDF checks that data plausibly is a PDF before MuPDF sees
// it. The %PDF- header may be preceded by a small amount of junk; real
// tooling tolerates up to 1KB, so this does too.
func ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return domain.InputError("empty PDF input", nil)
	}
	if len(data) > maxPDFSize {
		return domain.InputError(fmt.Sprintf("PDF exceeds %d MB limit", maxPDFSize/(1024*1024)), nil)
	}

	window := data
	if len(window) > 1024 {
		window = window[:1024]
	}
	if !bytes.Contains(window, pdfMagic) {
		return domain.InputError("input is not a PDF (missing %PDF header)", nil)
	}
	return nil
}

// ValidateDPI bounds the render resolution; extremes either lose the
// text or allocate page buffers in the gigabytes.
func ValidateDPI(dpi int) error {
	if dpi < 36 || dpi > 600 {
		return domain.InputError(fmt.Sprintf("dpi must be between 36 and 600, got %d", dpi), nil)
	}
	return nil
}
