package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteMarkdown writes content to dir/fileName, creating dir when needed, and returns
// the written path.
func WriteMarkdown(dir, fileName, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return path, nil
}

// ReportFileName names a run report, e.g. "AAPL_20260302_163000.md".
func ReportFileName(ticker string, at time.Time) string {
	return fmt.Sprintf("%s_%s.md", strings.ToUpper(ticker), at.Format("20060102_150405"))
}
