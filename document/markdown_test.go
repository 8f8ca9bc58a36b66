package document

import (
	"strings"
	"testing"
)

func TestTransformerTransform(t *testing.T) {
	transformer := NewTransformer()

	tests := []struct {
		name     string
		content  Content
		expected []string // Substrings that must be present
	}{
		{
			name: "basic project document",
			content: Content{
				Title: "Task Manager App",
				Sections: map[string]any{
					"requirements": "Users can create, edit, and complete tasks.",
					"architecture": "Three-tier web application with REST API.",
				},
				Status: "completed",
			},
			expected: []string{
				"# Task Manager App",
				"## Requirements",
				"Users can create, edit, and complete tasks.",
				"## Architecture",
				"Three-tier web application",
				"**Status:** completed",
			},
		},
		{
			name: "requirements come before design regardless of map order",
			content: Content{
				Title: "Ordering",
				Sections: map[string]any{
					"design":       "Wireframes for the dashboard.",
					"requirements": "Track work items.",
				},
			},
			expected: []string{"## Requirements", "## Design"},
		},
		{
			name: "nested sections",
			content: Content{
				Title: "Implementation Plan",
				Sections: map[string]any{
					"implementation_plan": map[string]any{
						"backend":  []any{"model layer", "REST handlers"},
						"frontend": []any{"task list view"},
					},
				},
			},
			expected: []string{
				"## Implementation Plan",
				"### Backend",
				"- model layer",
				"### Frontend",
				"- task list view",
			},
		},
		{
			name: "list of strings",
			content: Content{
				Title: "Decisions",
				Sections: map[string]any{
					"decisions": []any{"Use PostgreSQL", "Deploy on containers"},
				},
			},
			expected: []string{"- Use PostgreSQL", "- Deploy on containers"},
		},
		{
			name: "flat map renders as bold key list",
			content: Content{
				Sections: map[string]any{
					"metadata": map[string]any{
						"created_by": "project-manager",
						"version":    "1.0",
					},
				},
			},
			expected: []string{"- **Created By:** project-manager", "- **Version:** 1.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transformer.Transform(tt.content)
			for _, want := range tt.expected {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestTransformSectionOrdering(t *testing.T) {
	transformer := NewTransformer()

	got := transformer.Transform(Content{
		Sections: map[string]any{
			"zebra":        "last",
			"metadata":     "known, late",
			"requirements": "known, first",
			"alpha":        "unknown, alphabetical",
		},
	})

	order := []string{"## Requirements", "## Metadata", "## Alpha", "## Zebra"}
	last := -1
	for _, heading := range order {
		idx := strings.Index(got, heading)
		if idx < 0 {
			t.Fatalf("missing heading %q:\n%s", heading, got)
		}
		if idx < last {
			t.Errorf("heading %q out of order:\n%s", heading, got)
		}
		last = idx
	}
}

func TestToTitleCase(t *testing.T) {
	transformer := NewTransformer()

	tests := map[string]string{
		"implementation_plan": "Implementation Plan",
		"requirements":        "Requirements",
		"ui_ux_design":        "Ui Ux Design",
	}
	for in, want := range tests {
		if got := transformer.toTitleCase(in); got != want {
			t.Errorf("toTitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
