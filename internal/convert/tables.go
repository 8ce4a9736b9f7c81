package convert

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var htmlTablePattern = regexp.MustCompile(`(?is)<table\b.*?</table>`)

// rewriteHTMLTables replaces every HTML table in text with GitHub pipe
// syntax. A table that cannot be parsed stays as-is; Markdown viewers
// mostly render raw HTML anyway, so leaving it is the graceful path.
func rewriteHTMLTables(text string) string {
	return htmlTablePattern.ReplaceAllStringFunc(text, func(tbl string) string {
		rows := parseTableRows(tbl)
		if len(rows) == 0 {
			return tbl
		}
		return renderPipeTable(rows)
	})
}

// parseTableRows extracts cell text row by row from an HTML table
// fragment. Header cells are not distinguished; the first row becomes
// the pipe-table header.
func parseTableRows(fragment string) [][]string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil
	}

	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					row = append(row, cellText(c))
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return rows
}

func cellText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	text := strings.Join(strings.Fields(sb.String()), " ")
	return strings.ReplaceAll(text, "|", `\|`)
}

// renderPipeTable lays rows out as a GitHub table, padding ragged rows
// to the widest one.
func renderPipeTable(rows [][]string) string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	var sb strings.Builder
	for i, r := range rows {
		sb.WriteString("|")
		for c := 0; c < width; c++ {
			cell := ""
			if c < len(r) {
				cell = r[c]
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// pipeTableRows parses a Markdown pipe table block into cell rows,
// dropping the separator line.
func pipeTableRows(block string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isPipeSeparator(line) {
			continue
		}
		const esc = "\x00"
		line = strings.ReplaceAll(line, `\|`, esc)
		line = strings.Trim(line, "|")
		cells := strings.Split(line, "|")
		row := make([]string, 0, len(cells))
		for _, c := range cells {
			row = append(row, strings.TrimSpace(strings.ReplaceAll(c, esc, "|")))
		}
		rows = append(rows, row)
	}
	return rows
}

var pipeSeparator = regexp.MustCompile(`^[|\s\-:]+$`)

func isPipeSeparator(line string) bool {
	return strings.Contains(line, "-") && pipeSeparator.MatchString(line)
}

// looksLikeTable reports whether a paragraph block is a pipe table.
func looksLikeTable(block string) bool {
	return strings.Count(block, "|") > 2 && strings.HasPrefix(strings.TrimSpace(block), "|")
}
