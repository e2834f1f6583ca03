package dispatch

import (
	"encoding/json"
	"strings"
)

// ExtractText pulls the assistant-visible text out of a model response
// document. The document is an object with an output array; each output
// item carries content blocks, and blocks typed output_text contribute
// their text. Any shape mismatch yields an empty string, never an error.
func ExtractText(raw []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	output, ok := asSlice(doc["output"])
	if !ok {
		return ""
	}

	var parts []string
	for _, item := range output {
		entry, ok := asMap(item)
		if !ok {
			continue
		}
		content, ok := asSlice(entry["content"])
		if !ok {
			continue
		}
		for _, block := range content {
			b, ok := asMap(block)
			if !ok {
				continue
			}
			if stringValue(b["type"]) != "output_text" {
				continue
			}
			if text := stringValue(b["text"]); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "")
}
