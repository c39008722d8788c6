package builtin

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/finagent/llm/tools"
)

// CSVSampleRows is how many data rows the summary shows.
const CSVSampleRows = 3

// SummarizeCSV reports the header, data row count and the first sampleRows rows.
func SummarizeCSV(path string, sampleRows int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("file is empty")
	}
	if err != nil {
		return "", err
	}

	var (
		rows   int
		sample [][]string
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if len(sample) < sampleRows {
			sample = append(sample, rec)
		}
		rows++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(trimAll(header), ", "))
	fmt.Fprintf(&b, "Rows: %d\n", rows)
	fmt.Fprintf(&b, "First %d rows:", len(sample))
	for _, rec := range sample {
		b.WriteString("\n")
		b.WriteString(strings.Join(trimAll(rec), ", "))
	}
	return b.String(), nil
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
	}
	// Spreadsheet exports often start with a UTF-8 BOM.
	if len(out) > 0 {
		out[0] = strings.TrimPrefix(out[0], "\ufeff")
	}
	return out
}

// NewCSVTool returns the CSV Summary tool.
func NewCSVTool(cfg FileConfig) tools.ToolSpec {
	return tools.ToolSpec{
		Name:        tools.ToolCSVSummary.String(),
		Description: "Summarize a CSV file: column names, row count and the first 3 rows. Input: the file path.",
		Timeout:     10 * time.Second,
		Handler: func(_ context.Context, arg string) string {
			path, err := cfg.resolve(arg)
			if err != nil {
				return "Error reading CSV: " + err.Error()
			}
			out, err := SummarizeCSV(path, CSVSampleRows)
			if err != nil {
				return "Error reading CSV: " + err.Error()
			}
			return out
		},
	}
}
