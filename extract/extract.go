// Package extract converts document content to plain text for
// summarization. Dispatch is by file extension: PDF, HTML, Markdown and CSV
// get dedicated extractors; everything else is treated as UTF-8 text.
package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Text converts raw document content to plain text based on the file name's
// extension. Unknown extensions fall through to plain text.
func Text(filename string, content []byte) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "pdf":
		return PDF(content)
	case "html", "htm":
		return HTML(content), nil
	case "md", "markdown":
		return Markdown(content), nil
	case "csv":
		return CSV(content)
	default:
		return string(content), nil
	}
}

// CSV flattens rows to comma-joined lines.
func CSV(content []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	var b strings.Builder
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		b.WriteString(strings.Join(record, ", "))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}
