package worlddata

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Types lists the document types a world directory may contain.
var Types = []string{"nation", "province", "relation", "scenario"}

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		out := make(map[string]*jsonschema.Schema, len(Types))
		for _, name := range Types {
			file := "schemas/" + name + ".schema.json"
			data, err := schemaFS.ReadFile(file)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(file, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := c.Compile(file)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// ValidateDocument checks the frontmatter of doc against the schema for
// its type.
func ValidateDocument(doc *Document) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	s, ok := all[doc.Type]
	if !ok {
		return fmt.Errorf("unknown document type %q", doc.Type)
	}
	value, err := jsonValue(doc.Frontmatter)
	if err != nil {
		return err
	}
	if err := s.Validate(value); err != nil {
		return fmt.Errorf("%s frontmatter: %w", doc.Type, err)
	}
	return nil
}

// jsonValue normalizes YAML-decoded values into the shapes encoding/json
// produces.
func jsonValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode frontmatter: %w", err)
	}
	return out, nil
}
