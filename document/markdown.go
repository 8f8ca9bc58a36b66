// Package document renders project state into markdown artifacts and
// manages the on-disk artifact store.
package document

import (
	"fmt"
	"sort"
	"strings"
)

// Content is the structured input to the markdown transformer: a document
// title plus the section values agents accumulated in project state.
type Content struct {
	Title    string
	Sections map[string]any
	Status   string
}

// Transformer converts structured document content to markdown.
type Transformer struct{}

// NewTransformer creates a new markdown transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// sectionOrder lists sections in document order. Project-state sections
// come first; unknown sections sort alphabetically after them.
var sectionOrder = []string{
	"requirements",
	"analysis",
	"architecture",
	"design",
	"implementation_plan",
	"implementation",
	"testing",
	"quality",
	"decisions",
	"metadata",
}

// Transform converts Content to a markdown string.
func (t *Transformer) Transform(content Content) string {
	var sb strings.Builder

	if content.Title != "" {
		sb.WriteString("# ")
		sb.WriteString(content.Title)
		sb.WriteString("\n\n")
	}

	for _, section := range t.orderSections(content.Sections) {
		t.writeSection(&sb, section.name, section.value, 2)
	}

	if content.Status != "" {
		sb.WriteString("---\n\n")
		sb.WriteString("**Status:** ")
		sb.WriteString(content.Status)
		sb.WriteString("\n")
	}

	return sb.String()
}

type sectionEntry struct {
	name  string
	value any
}

func (t *Transformer) orderSections(sections map[string]any) []sectionEntry {
	orderMap := make(map[string]int, len(sectionOrder))
	for i, name := range sectionOrder {
		orderMap[name] = i
	}

	entries := make([]sectionEntry, 0, len(sections))
	for name, value := range sections {
		entries = append(entries, sectionEntry{name: name, value: value})
	}

	sort.Slice(entries, func(i, j int) bool {
		orderI, okI := orderMap[entries[i].name]
		orderJ, okJ := orderMap[entries[j].name]

		if okI && okJ {
			return orderI < orderJ
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return entries[i].name < entries[j].name
	})

	return entries
}

func (t *Transformer) writeSection(sb *strings.Builder, name string, value any, level int) {
	title := t.toTitleCase(name)

	sb.WriteString(strings.Repeat("#", level))
	sb.WriteString(" ")
	sb.WriteString(title)
	sb.WriteString("\n\n")

	switch v := value.(type) {
	case string:
		sb.WriteString(v)
		sb.WriteString("\n\n")

	case []any:
		for _, item := range v {
			switch itemVal := item.(type) {
			case string:
				sb.WriteString("- ")
				sb.WriteString(itemVal)
				sb.WriteString("\n")
			case map[string]any:
				t.writeMapAsList(sb, itemVal)
			default:
				sb.WriteString("- ")
				fmt.Fprintf(sb, "%v", item)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")

	case map[string]any:
		if t.hasNestedSections(v) {
			for _, sub := range t.orderSections(v) {
				t.writeSection(sb, sub.name, sub.value, level+1)
			}
		} else {
			t.writeMapAsList(sb, v)
			sb.WriteString("\n")
		}

	default:
		fmt.Fprintf(sb, "%v", value)
		sb.WriteString("\n\n")
	}
}

// hasNestedSections checks if a map contains nested sections (maps or arrays).
func (t *Transformer) hasNestedSections(m map[string]any) bool {
	for _, v := range m {
		switch v.(type) {
		case map[string]any, []any:
			return true
		}
	}
	return false
}

// writeMapAsList writes a map as a markdown list with sorted keys.
func (t *Transformer) writeMapAsList(sb *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		title := t.toTitleCase(k)

		switch val := v.(type) {
		case []any:
			sb.WriteString("**")
			sb.WriteString(title)
			sb.WriteString(":**\n")
			for _, item := range val {
				sb.WriteString("  - ")
				fmt.Fprintf(sb, "%v", item)
				sb.WriteString("\n")
			}
		case string:
			sb.WriteString("- **")
			sb.WriteString(title)
			sb.WriteString(":** ")
			sb.WriteString(val)
			sb.WriteString("\n")
		default:
			sb.WriteString("- **")
			sb.WriteString(title)
			sb.WriteString(":** ")
			fmt.Fprintf(sb, "%v", v)
			sb.WriteString("\n")
		}
	}
}

// toTitleCase converts snake_case to Title Case.
func (t *Transformer) toTitleCase(s string) string {
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}
