package convert

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"

	"github.com/pagelens/docr/internal/domain"
)

// OOXML geometry: EMUs per pixel at 96 DPI, and the widest an inline
// picture is allowed to render.
const (
	emuPerPixel   = 9525
	maxPictureEMU = 5 * 914400 // 5 inches
)

var imageRefLine = regexp.MustCompile(`^!\[[^\]]*\]\(([^)]+)\)$`)

// docxPicture is one media part plus its relationship id and extent.
type docxPicture struct {
	partName string
	relID    string
	data     []byte
	cx, cy   int64
}

// toDOCX builds a word-processing document: one section per page with
// a "Page N" heading, pipe and HTML tables as native table objects,
// and extracted images placed inline where their reference appears in
// the text. Output bytes are reproducible: fixed part order, no
// timestamps, relationship ids assigned in page order.
func toDOCX(pages []domain.PageResult, job domain.Job) (Document, error) {
	var (
		body strings.Builder
		pics []docxPicture
	)

	body.WriteString(styledParagraph("Title", "OCR Results"))

	for i, p := range pages {
		body.WriteString(styledParagraph("Heading1", fmt.Sprintf("Page %d", p.PageNumber)))

		if p.Failed() {
			body.WriteString(textParagraph("processing failed: " + p.Err))
		} else {
			renderDOCXPage(&body, p, &pics)
		}

		if i < len(pages)-1 {
			body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
	}

	return packDOCX(body.String(), pics)
}

// renderDOCXPage lays one page's cleaned text into body, registering
// pictures it references along the way.
func renderDOCXPage(body *strings.Builder, p domain.PageResult, pics *[]docxPicture) {
	imgByName := make(map[string]domain.ExtractedImage, len(p.Images))
	for _, img := range p.Images {
		imgByName[img.Name] = img
	}

	text := rewriteHTMLTables(p.CleanedText)
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		switch {
		case looksLikeTable(block):
			body.WriteString(tableXML(pipeTableRows(block)))
		case strings.HasPrefix(block, "### "):
			body.WriteString(styledParagraph("Heading3", strings.TrimPrefix(block, "### ")))
		case strings.HasPrefix(block, "## "):
			body.WriteString(styledParagraph("Heading2", strings.TrimPrefix(block, "## ")))
		case strings.HasPrefix(block, "# "):
			body.WriteString(styledParagraph("Heading1", strings.TrimPrefix(block, "# ")))
		case strings.HasPrefix(block, "```"):
			code := strings.TrimSpace(strings.Trim(block, "`"))
			body.WriteString(codeParagraph(code))
		default:
			renderMixedBlock(body, block, imgByName, pics)
		}
	}
}

// renderMixedBlock emits a prose block, splitting out lines that are
// image references so the picture lands at its position in the text
// stream.
func renderMixedBlock(body *strings.Builder, block string, imgByName map[string]domain.ExtractedImage, pics *[]docxPicture) {
	var prose []string
	flush := func() {
		if len(prose) > 0 {
			body.WriteString(textParagraph(strings.Join(prose, " ")))
			prose = prose[:0]
		}
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if m := imageRefLine.FindStringSubmatch(line); m != nil {
			if img, ok := imgByName[m[1]]; ok {
				flush()
				body.WriteString(pictureXML(registerPicture(pics, img)))
				continue
			}
		}
		if line != "" {
			prose = append(prose, line)
		}
	}
	flush()
}

// registerPicture assigns the image a media part and relationship id.
func registerPicture(pics *[]docxPicture, img domain.ExtractedImage) docxPicture {
	cx, cy := pictureExtent(img.Data)
	pic := docxPicture{
		partName: fmt.Sprintf("media/image%d.jpg", len(*pics)+1),
		relID:    fmt.Sprintf("rId%d", len(*pics)+100),
		data:     img.Data,
		cx:       cx,
		cy:       cy,
	}
	*pics = append(*pics, pic)
	return pic
}

// pictureExtent derives the inline display size in EMUs, capping the
// width and keeping the aspect ratio. Undecodable images get a
// placeholder extent rather than failing the document.
func pictureExtent(data []byte) (cx, cy int64) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 3 * 914400, 2 * 914400
	}
	cx = int64(cfg.Width) * emuPerPixel
	cy = int64(cfg.Height) * emuPerPixel
	if cx > maxPictureEMU {
		cy = cy * maxPictureEMU / cx
		cx = maxPictureEMU
	}
	return cx, cy
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func esc(s string) string { return xmlEscaper.Replace(s) }

func styledParagraph(style, text string) string {
	return fmt.Sprintf(
		`<w:p><w:pPr><w:pStyle w:val="%s"/></w:pPr><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		style, esc(text))
}

func textParagraph(text string) string {
	return fmt.Sprintf(
		`<w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`, esc(text))
}

func codeParagraph(text string) string {
	return fmt.Sprintf(
		`<w:p><w:r><w:rPr><w:rFonts w:ascii="Courier New" w:hAnsi="Courier New"/><w:sz w:val="20"/></w:rPr>`+
			`<w:t xml:space="preserve">%s</w:t></w:r></w:p>`, esc(text))
}

// tableXML renders rows as a native table; the first row is bold.
func tableXML(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	var sb strings.Builder
	sb.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/><w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`</w:tblBorders></w:tblPr><w:tblGrid>`)
	for i := 0; i < width; i++ {
		sb.WriteString(`<w:gridCol/>`)
	}
	sb.WriteString(`</w:tblGrid>`)

	for i, row := range rows {
		sb.WriteString(`<w:tr>`)
		for c := 0; c < width; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			if i == 0 {
				sb.WriteString(fmt.Sprintf(
					`<w:tc><w:tcPr/><w:p><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r></w:p></w:tc>`,
					esc(cell)))
			} else {
				sb.WriteString(fmt.Sprintf(
					`<w:tc><w:tcPr/><w:p><w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p></w:tc>`,
					esc(cell)))
			}
		}
		sb.WriteString(`</w:tr>`)
	}
	sb.WriteString(`</w:tbl>`)
	return sb.String()
}

func pictureXML(pic docxPicture) string {
	return fmt.Sprintf(`<w:p><w:r><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="%d" name="%s"/>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		pic.cx, pic.cy, picID(pic), esc(pic.partName), picID(pic), esc(pic.partName), pic.relID, pic.cx, pic.cy)
}

func picID(pic docxPicture) int {
	var id int
	fmt.Sscanf(pic.relID, "rId%d", &id)
	return id
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="jpg" ContentType="image/jpeg"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Default Extension="png" ContentType="image/png"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>
<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:pPr><w:jc w:val="center"/><w:spacing w:after="240"/></w:pPr><w:rPr><w:b/><w:sz w:val="56"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="200" w:after="100"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:pPr><w:spacing w:before="160" w:after="80"/><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>
</w:styles>`

const docxSectPr = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr>`

// packDOCX writes the OPC container. Part order and header fields are
// fixed so identical input yields identical bytes.
func packDOCX(body string, pics []docxPicture) (Document, error) {
	docXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">` +
		`<w:body>` + body + docxSectPr + `</w:body></w:document>`

	var rels strings.Builder
	rels.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n" +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` + "\n")
	for _, pic := range pics {
		fmt.Fprintf(&rels,
			`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s"/>`+"\n",
			pic.relID, pic.partName)
	}
	rels.WriteString(`</Relationships>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxRootRels)},
		{"word/document.xml", []byte(docXML)},
		{"word/_rels/document.xml.rels", []byte(rels.String())},
		{"word/styles.xml", []byte(docxStyles)},
	}
	for _, pic := range pics {
		parts = append(parts, struct {
			name string
			data []byte
		}{"word/" + pic.partName, pic.data})
	}

	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: part.name, Method: zip.Deflate})
		if err != nil {
			return Document{}, domain.ConversionError("writing docx part "+part.name, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return Document{}, domain.ConversionError("writing docx part "+part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Document{}, domain.ConversionError("finalizing docx container", err)
	}

	return Document{
		Data: buf.Bytes(),
		MIME: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Ext:  ".docx",
	}, nil
}
