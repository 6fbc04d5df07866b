package worlddata

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one markdown world file split into frontmatter and body.
type Document struct {
	Frontmatter map[string]any
	Type        string
	Body        string
	SourceFile  string
}

var (
	ErrNoFrontmatter = errors.New("no frontmatter found")
	ErrInvalidYAML   = errors.New("invalid YAML in frontmatter")
	ErrMissingType   = errors.New("frontmatter missing required 'type' field")
)

func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, '\n')
	}
	trimmed := bytes.TrimLeft(content, "\ufeff\n\t ")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len("---\n"):]
	end := bytes.Index(rest, []byte("---\n"))
	if end == -1 {
		return nil, ErrNoFrontmatter
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal(rest[:end], &frontmatter); err != nil {
		return nil, ErrInvalidYAML
	}

	docType, ok := frontmatter["type"].(string)
	if !ok || strings.TrimSpace(docType) == "" {
		return nil, ErrMissingType
	}

	return &Document{
		Frontmatter: frontmatter,
		Type:        strings.ToLower(strings.TrimSpace(docType)),
		Body:        strings.TrimSpace(string(rest[end+len("---\n"):])),
	}, nil
}
