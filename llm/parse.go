package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFence removes a surrounding markdown code fence (``` or ```json)
// from model output. Models frequently wrap requested JSON this way even when
// told not to.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		// Drop the language tag line (e.g. "json").
		if lang := strings.TrimSpace(trimmed[:newline]); lang == "" || !strings.ContainsAny(lang, " \t{[") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// DecodeJSON strips any code fence and unmarshals the remainder into dst.
func DecodeJSON(content string, dst any) error {
	cleaned := StripCodeFence(content)
	if cleaned == "" {
		return fmt.Errorf("model returned empty content")
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}
