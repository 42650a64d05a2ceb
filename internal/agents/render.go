package agents

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// JSON renders v as indented JSON with sorted keys for prompt bindings.
func JSON(v any) string {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// Bullets renders items as a dash list, or fallback when there are none.
func Bullets(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

// Numbers renders the last n values of a series, oldest first.
func Numbers(values []float64, n int, format string) string {
	if len(values) == 0 {
		return "N/A"
	}
	if len(values) > n {
		values = values[len(values)-n:]
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf(format, v)
	}
	return strings.Join(parts, ", ")
}
