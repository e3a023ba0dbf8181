package repair

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// ErrNoSpecification is returned when no JSON object can be extracted from a
// proposer response.
var ErrNoSpecification = errors.New("no specification found in response")

// ExtractSpecification pulls a specification out of raw model output.
//
// Markdown fences (```json and ```) are stripped and the text trimmed before
// parsing. If that still does not parse, the body of the first fenced block
// is tried, then the outermost {...} of the whole text, which covers prose
// before or after the object. Anything that is not a JSON object is
// rejected.
func ExtractSpecification(text string) (*models.Specification, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty response", ErrNoSpecification)
	}

	if spec, err := decodeObject(cleaned); err == nil {
		return spec, nil
	}

	if block, ok := firstFencedBlock(text); ok {
		if spec, err := decodeObject(block); err == nil {
			return spec, nil
		}
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w (got %d chars): %q", ErrNoSpecification, len(text), preview(text))
	}

	spec, err := decodeObject(cleaned[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSpecification, err)
	}
	return spec, nil
}

func stripFences(text string) string {
	s := strings.ReplaceAll(text, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// firstFencedBlock returns the body of the first ``` fenced block, without
// its language tag.
func firstFencedBlock(text string) (string, bool) {
	_, rest, ok := strings.Cut(text, "```")
	if !ok {
		return "", false
	}
	body, _, ok := strings.Cut(rest, "```")
	if !ok {
		return "", false
	}
	if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	return body, true
}

func decodeObject(s string) (*models.Specification, error) {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("not a JSON object")
	}
	var spec models.Specification
	if err := json.Unmarshal(trimmed, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "... (truncated)"
	}
	return s
}
