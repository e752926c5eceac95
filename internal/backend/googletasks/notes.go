package googletasks

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// Meta is the part of a task row that Google Tasks has no field for. It is
// kept as YAML front matter at the head of the task notes.
type Meta struct {
	Status    string     `yaml:"status,omitempty"`
	Priority  string     `yaml:"priority,omitempty"`
	Assignee  string     `yaml:"assignee,omitempty"`
	CreatedAt *time.Time `yaml:"created_at,omitempty"`
}

// EncodeNotes renders meta as front matter followed by the description.
func EncodeNotes(meta Meta, description string) (string, error) {
	var b bytes.Buffer
	b.WriteString(frontMatterDelim + "\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return "", fmt.Errorf("encode task metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode task metadata: %w", err)
	}
	b.WriteString(frontMatterDelim + "\n")
	b.WriteString(description)
	return b.String(), nil
}

// DecodeNotes splits notes into front matter and description. Notes without
// front matter (tasks created in another client) are all description. Front
// matter that fails to parse is treated the same way.
func DecodeNotes(notes string) (Meta, string) {
	notes = strings.ReplaceAll(notes, "\r\n", "\n")
	if !strings.HasPrefix(notes, frontMatterDelim+"\n") {
		return Meta{}, notes
	}
	rest := notes[len(frontMatterDelim)+1:]

	var head, body string
	switch {
	case strings.HasPrefix(rest, frontMatterDelim+"\n"):
		body = rest[len(frontMatterDelim)+1:]
	case rest == frontMatterDelim:
	default:
		end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
		if end < 0 {
			if !strings.HasSuffix(rest, "\n"+frontMatterDelim) {
				return Meta{}, notes
			}
			end = len(rest) - len(frontMatterDelim) - 1
			head = rest[:end]
		} else {
			head = rest[:end]
			body = rest[end+len(frontMatterDelim)+2:]
		}
	}

	var meta Meta
	if err := yaml.Unmarshal([]byte(head), &meta); err != nil {
		return Meta{}, notes
	}
	return meta, body
}
