package convert

import (
	"bytes"
	"encoding/json"

	"github.com/pagelens/docr/internal/domain"
)

type jsonPayload struct {
	TotalPages int                 `json:"total_pages"`
	Pages      []domain.PageResult `json:"pages"`
	Metadata   jsonMetadata        `json:"metadata"`
}

type jsonMetadata struct {
	Mode      domain.Mode `json:"mode"`
	Grounding bool        `json:"grounding"`
	DPI       int         `json:"dpi"`
	Failed    int         `json:"failed_pages"`
}

// toJSON emits the full structured representation; the only format
// that needs no rendering.
func toJSON(pages []domain.PageResult, job domain.Job) (Document, error) {
	failed := 0
	for _, p := range pages {
		if p.Failed() {
			failed++
		}
	}

	payload := jsonPayload{
		TotalPages: len(pages),
		Pages:      pages,
		Metadata: jsonMetadata{
			Mode:      job.Mode,
			Grounding: job.Grounding || job.Mode.RequiresGrounding(),
			DPI:       job.DPI,
			Failed:    failed,
		},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return Document{}, domain.ConversionError("encoding JSON payload", err)
	}
	return Document{Data: buf.Bytes(), MIME: "application/json", Ext: ".json"}, nil
}
