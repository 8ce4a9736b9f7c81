package convert

import (
	"fmt"
	"strings"

	"github.com/pagelens/docr/internal/domain"
)

// toMarkdown concatenates per-page text under "# Page N" headings with
// a horizontal-rule page separator. HTML tables from the model are
// rewritten as pipe tables. Image references stay relative and the raw
// bytes travel in Assets, unless the job asks for inline data URIs.
func toMarkdown(pages []domain.PageResult, job domain.Job) (Document, error) {
	var (
		sb     strings.Builder
		assets []domain.ExtractedImage
	)

	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "# Page %d\n\n", p.PageNumber)

		if p.Failed() {
			fmt.Fprintf(&sb, "> processing failed: %s\n", p.Err)
			continue
		}

		text := rewriteHTMLTables(p.CleanedText)
		if job.InlineImages {
			text = inlineImageRefs(text, p.Images)
		} else {
			assets = append(assets, p.Images...)
		}
		sb.WriteString(text)
	}
	sb.WriteString("\n")

	return Document{
		Data:   []byte(sb.String()),
		MIME:   "text/markdown; charset=utf-8",
		Ext:    ".md",
		Assets: assets,
	}, nil
}

// inlineImageRefs swaps relative image links for data URIs so the
// Markdown file is self-contained.
func inlineImageRefs(text string, images []domain.ExtractedImage) string {
	for _, img := range images {
		ref := fmt.Sprintf("![](%s)", img.Name)
		uri := fmt.Sprintf("![](data:image/jpeg;base64,%s)", img.Base64())
		text = strings.ReplaceAll(text, ref, uri)
	}
	return text
}
