package convert

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/pagelens/docr/internal/domain"
)

const htmlHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>OCR Results</title>
<style>
body {
  font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
  max-width: 900px;
  margin: 40px auto;
  padding: 20px;
  line-height: 1.6;
  background-color: #f5f5f5;
}
.page {
  background: white;
  padding: 40px;
  margin-bottom: 30px;
  box-shadow: 0 2px 8px rgba(0,0,0,0.1);
  border-radius: 8px;
}
.page-header {
  color: #333;
  border-bottom: 2px solid #4CAF50;
  padding-bottom: 10px;
  margin-bottom: 20px;
}
.page-error { color: #b00020; }
table { border-collapse: collapse; width: 100%; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #4CAF50; color: white; }
tr:nth-child(even) { background-color: #f9f9f9; }
img { max-width: 100%; height: auto; margin: 15px 0; border-radius: 4px; }
code {
  background-color: #f4f4f4;
  padding: 2px 6px;
  border-radius: 3px;
  font-family: 'Courier New', monospace;
}
pre { background-color: #f4f4f4; padding: 15px; border-radius: 5px; overflow-x: auto; }
</style>
</head>
<body>
<h1>OCR Results</h1>
`

const htmlFooter = `</body>
</html>
`

// markdownHTML renders model output inside each page shell. Unsafe
// rendering is deliberate: the model emits native HTML for tables and
// that markup must pass through unchanged.
var markdownHTML = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldhtml.WithUnsafe()),
)

// toHTML wraps per-page content in a styled document shell. Extracted
// images are always embedded as data URIs so the file stands alone.
func toHTML(pages []domain.PageResult, job domain.Job) (Document, error) {
	var sb strings.Builder
	sb.WriteString(htmlHeader)

	for _, p := range pages {
		sb.WriteString(`<div class="page">` + "\n")
		fmt.Fprintf(&sb, `<h2 class="page-header">Page %d</h2>`+"\n", p.PageNumber)

		switch {
		case p.Failed():
			fmt.Fprintf(&sb, `<p class="page-error">processing failed: %s</p>`+"\n", html.EscapeString(p.Err))
		default:
			text := inlineImageRefs(p.CleanedText, p.Images)
			var body bytes.Buffer
			if err := markdownHTML.Convert([]byte(text), &body); err != nil {
				// Degrade to escaped text; never fail the document.
				fmt.Fprintf(&sb, "<pre>%s</pre>\n", html.EscapeString(text))
			} else {
				sb.Write(body.Bytes())
			}
		}
		sb.WriteString("</div>\n")
	}

	sb.WriteString(htmlFooter)
	return Document{
		Data: []byte(sb.String()),
		MIME: "text/html; charset=utf-8",
		Ext:  ".html",
	}, nil
}
