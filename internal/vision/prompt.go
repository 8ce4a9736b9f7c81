package vision

import (
	"fmt"
	"strings"

	"github.com/pagelens/docr/internal/domain"
)

// PromptInput is the subset of a job the prompt depends on.
type PromptInput struct {
	Mode           domain.Mode
	UserPrompt     string
	Grounding      bool
	FindTerm       string
	Schema         string
	IncludeCaption bool
}

// BuildPrompt assembles the model prompt for a mode. The leading
// <image> token is where the backend splices the tile set; the
// <|grounding|> token switches the model into box-emitting output.
func BuildPrompt(in PromptInput) string {
	parts := []string{"<image>"}
	if in.Grounding || in.Mode.RequiresGrounding() {
		parts = append(parts, "<|grounding|>")
	}

	instruction := instructionFor(in)
	if in.IncludeCaption && in.Mode != domain.ModeDescribe {
		instruction += "\nThen add a one-paragraph description of the image."
	}
	parts = append(parts, instruction)
	return strings.Join(parts, "\n")
}

func instructionFor(in PromptInput) string {
	switch in.Mode {
	case domain.ModePlainOCR:
		return "Free OCR."
	case domain.ModeMarkdown:
		return "Convert the document to markdown."
	case domain.ModeTablesCSV:
		return "Extract every table and output CSV only. " +
			"Use commas, minimal quoting. If multiple tables, separate with a line containing '---'."
	case domain.ModeTablesMarkdown:
		return "Extract every table as GitHub-flavored Markdown tables. Output only the tables."
	case domain.ModeKeyValueJSON:
		schema := strings.TrimSpace(in.Schema)
		if schema == "" {
			schema = "{}"
		}
		return "Extract key fields and return strict JSON only. " +
			fmt.Sprintf("Use this schema (fill the values): %s", schema)
	case domain.ModeFigureChart:
		return "Parse the figure. First extract any numeric series as a two-column table (x,y). " +
			"Then summarize the chart in 2 sentences. Output the table, then a line '---', then the summary."
	case domain.ModeFindRef:
		term := strings.TrimSpace(in.FindTerm)
		if term == "" {
			term = "Total"
		}
		return fmt.Sprintf("Locate <|ref|>%s<|/ref|> in the image.", term)
	case domain.ModeLayoutMap:
		return `Return a JSON array of blocks with fields {"type":["title","paragraph","table","figure"],` +
			`"box":[x1,y1,x2,y2]}. Do not include any text content.`
	case domain.ModePIIRedact:
		return "Find all occurrences of emails, phone numbers, postal addresses, and IBANs. " +
			"Return a JSON array of objects {label, text, box:[x1,y1,x2,y2]}."
	case domain.ModeMultilingual:
		return "Free OCR. Detect the language automatically and output in the same script."
	case domain.ModeDescribe:
		return "Describe this image. Focus on visible key elements."
	case domain.ModeFreeform:
		if p := strings.TrimSpace(in.UserPrompt); p != "" {
			return p
		}
		return "OCR this image."
	default:
		return "OCR this image."
	}
}
