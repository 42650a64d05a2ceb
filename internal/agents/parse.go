package agents

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
)

var errNoJSONObject = errors.New("no JSON object in response")

// parseRecord extracts the first JSON object from a model response. Code fences and
// surrounding prose are tolerated.
func parseRecord(content string) (Record, error) {
	text := strings.TrimSpace(content)
	if fenced, ok := stripFence(text); ok {
		text = fenced
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}

	var rec Record
	if err := sonic.UnmarshalString(text[start:end+1], &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errNoJSONObject
	}
	return rec, nil
}

func stripFence(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	body := text[open+3:]
	// drop the language tag on the fence line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	closing := strings.Index(body, "```")
	if closing < 0 {
		return body, true
	}
	return body[:closing], true
}
