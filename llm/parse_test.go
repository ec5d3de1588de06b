package llm_test

import (
	"testing"

	"github.com/fabfab/profai/llm"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"single line fence", "```{\"a\": 1}```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n[1, 2]\n```  ", "[1, 2]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := llm.StripCodeFence(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var payload struct {
		Topic string `json:"topic"`
	}
	if err := llm.DecodeJSON("```json\n{\"topic\": \"backpropagation\"}\n```", &payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Topic != "backpropagation" {
		t.Fatalf("unexpected topic: %q", payload.Topic)
	}

	if err := llm.DecodeJSON("not json", &payload); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if err := llm.DecodeJSON("``````", &payload); err == nil {
		t.Fatal("expected error for empty content")
	}
}
