package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"NotesTagger/internal/domain"
)

// MaxLabels caps how many suggestions are taken from one response.
const MaxLabels = 3

// ExtractLabels locates the {"tags": [...]} object in free-form model output.
//
// The greedy span from the first '{' to the last '}' is tried first; if it is a
// JSON object without a "tags" key the result is empty. When the span does not
// decode, an object is decoded starting at each '{' in turn and the first one
// carrying "tags" wins. The key is matched exactly. Anything else yields a
// MalformedResponseError.
func ExtractLabels(text string) ([]string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, &domain.MalformedResponseError{Reason: "no JSON object in model output"}
	}

	var fields map[string]json.RawMessage
	firstErr := json.Unmarshal([]byte(text[start:end+1]), &fields)
	if firstErr == nil {
		tags, _, err := tagsField(fields)
		if err == nil {
			return normalizeLabels(tags), nil
		}
		firstErr = err
	}

	for i := start; i <= end; i++ {
		if text[i] != '{' {
			continue
		}
		var candidate map[string]json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&candidate); err != nil {
			continue
		}
		// Objects nested in a truncated reply decode fine but carry no tags.
		if tags, found, err := tagsField(candidate); err == nil && found {
			return normalizeLabels(tags), nil
		}
	}

	return nil, &domain.MalformedResponseError{Reason: "no decodable tags object", Err: firstErr}
}

func tagsField(fields map[string]json.RawMessage) ([]string, bool, error) {
	raw, ok := fields["tags"]
	if !ok {
		return nil, false, nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, true, fmt.Errorf("decode tags: %w", err)
	}
	return tags, true, nil
}

func normalizeLabels(raw []string) []string {
	labels := make([]string, 0, MaxLabels)
	seen := make(map[string]struct{}, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		labels = append(labels, tag)
		if len(labels) == MaxLabels {
			break
		}
	}
	return labels
}
