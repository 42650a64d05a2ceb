package utils

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// userMarker separates the system instructions from the user message in a template file.
const userMarker = "<!-- user -->"

// PromptTemplate is a system/user message pair with FString placeholders.
type PromptTemplate struct {
	ID     string
	System string
	User   string
}

// Placeholders returns the sorted, de-duplicated placeholder names of both messages.
func (t PromptTemplate) Placeholders() []string {
	seen := map[string]struct{}{}
	for _, name := range Placeholders(t.System) {
		seen[name] = struct{}{}
	}
	for _, name := range Placeholders(t.User) {
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return string(content), nil
}

// LoadTemplate loads a prompt and splits it into system and user messages. A file without
// a user marker is treated as a system-only template.
func LoadTemplate(id string) (PromptTemplate, error) {
	content, err := LoadPrompt(id)
	if err != nil {
		return PromptTemplate{}, err
	}
	system, user, found := strings.Cut(content, userMarker)
	tpl := PromptTemplate{ID: id, System: strings.TrimSpace(system)}
	if found {
		tpl.User = strings.TrimSpace(user)
	}
	return tpl, nil
}

// Placeholders scans an FString template for {name} fields. Doubled braces are
// literal and skipped.
func Placeholders(tpl string) []string {
	var names []string
	seen := map[string]bool{}
	for i := 0; i < len(tpl); i++ {
		switch tpl[i] {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				i++
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return names
			}
			name := strings.TrimSpace(tpl[i+1 : i+1+end])
			// format specs such as {price:.2f}
			if j := strings.IndexAny(name, ":!"); j >= 0 {
				name = name[:j]
			}
			if name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			i += end + 1
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				i++
			}
		}
	}
	return names
}
