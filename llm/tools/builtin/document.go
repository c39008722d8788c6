package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/finagent/llm/tools"
	"github.com/ledongthuc/pdf"
)

// MaxDocumentChars caps the extracted text handed to the reasoning loop.
const MaxDocumentChars = 2000

// ExtractPDFText returns the text of every page, truncated to limit runes.
// The file is closed on every path, including a panic inside the parser.
func ExtractPDFText(path string, limit int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(content)
		if limit > 0 && utf8.RuneCountInString(b.String()) >= limit {
			break
		}
	}
	return truncateRunes(b.String(), limit), nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// NewPDFTool returns the PDF Reader tool.
func NewPDFTool(cfg FileConfig) tools.ToolSpec {
	return tools.ToolSpec{
		Name:        tools.ToolPDFReader.String(),
		Description: fmt.Sprintf("Extract the text of a PDF document (first %d characters). Input: the file path.", MaxDocumentChars),
		Timeout:     20 * time.Second,
		Handler: func(_ context.Context, arg string) string {
			path, err := cfg.resolve(arg)
			if err != nil {
				return "Error reading PDF: " + err.Error()
			}
			text, err := ExtractPDFText(path, MaxDocumentChars)
			if err != nil {
				return "Error reading PDF: " + err.Error()
			}
			if strings.TrimSpace(text) == "" {
				return "No extractable text found."
			}
			return text
		},
	}
}
