package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "fenced json block",
			content: "Here is the plan:\n```json\n{\"title\": \"Build API\"}\n```\nDone.",
			want:    `{"title": "Build API"}`,
		},
		{
			name:    "fence without language tag",
			content: "```\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "bare object",
			content: `The result is {"status": "ok"} as requested.`,
			want:    `{"status": "ok"}`,
		},
		{
			name:    "no json",
			content: "I could not produce a plan.",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.content); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONCleansArtifacts(t *testing.T) {
	content := "```json\n" + `{
	"tasks": [
		"write tests", // unit coverage first
		"implement",
	],
	"docs": "http://example.com/spec",
}` + "\n```"

	got := ExtractJSON(content)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("cleaned output is not valid JSON: %v\n%s", err, got)
	}
	if parsed["docs"] != "http://example.com/spec" {
		t.Errorf("URL inside a string was mangled: %v", parsed["docs"])
	}
	tasks, ok := parsed["tasks"].([]any)
	if !ok || len(tasks) != 2 {
		t.Errorf("unexpected tasks: %v", parsed["tasks"])
	}
}

func TestExtractJSONArray(t *testing.T) {
	content := "```json\n[{\"id\": 1}, {\"id\": 2},]\n```"

	got := ExtractJSONArray(content)

	var parsed []map[string]any
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("cleaned array is not valid JSON: %v\n%s", err, got)
	}
	if len(parsed) != 2 {
		t.Errorf("expected 2 elements, got %d", len(parsed))
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`"url": "http://example.com",`, `"url": "http://example.com",`},
		{`"path", // comment`, `"path",`},
		{`"key": "value" // trailing`, `"key": "value"`},
		{`"escaped \" quote" // gone`, `"escaped \" quote"`},
		{`plain line`, `plain line`},
	}

	for _, tt := range tests {
		if got := stripLineComment(tt.line); got != tt.want {
			t.Errorf("stripLineComment(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
