package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF pulls the text layer out of a PDF document. Pages that cannot be
// decoded are dropped so one bad page does not sink the rest; image-only
// scans come back empty rather than failing.
func PDF(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("pdf: no data")
	}
	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("pdf: %w", err)
	}

	pages := make([]string, 0, doc.NumPage())
	for n := 1; n <= doc.NumPage(); n++ {
		p := doc.Page(n)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if txt = strings.TrimSpace(txt); txt != "" {
			pages = append(pages, txt)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
