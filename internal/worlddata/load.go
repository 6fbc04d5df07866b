// Package worlddata loads the starting world from a directory of markdown
// files with YAML frontmatter, one nation, province, relation or scenario
// per file.
package worlddata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"openhistoria/internal/world"
)

type Result struct {
	State        world.State
	Scenario     string
	FilesLoaded  int
	FilesSkipped int
	Errors       []error
}

// Load walks paths for markdown files, validates each against its type's
// schema and assembles the starting world. Files without frontmatter or a
// type are skipped; invalid files are reported in Result.Errors and left
// out. startYear is used when no scenario file sets one.
func Load(paths, exclude []string, startYear int) (*Result, error) {
	files, err := walkMarkdownFiles(paths, exclude)
	if err != nil {
		return nil, fmt.Errorf("walking world files: %w", err)
	}

	result := &Result{State: world.State{Turn: startYear}}
	var narrative []string
	for _, path := range files {
		doc, err := ParseFile(path)
		if err != nil {
			if errors.Is(err, ErrNoFrontmatter) || errors.Is(err, ErrMissingType) {
				result.FilesSkipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, err))
			continue
		}
		if err := ValidateDocument(doc); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("validating %s: %w", path, err))
			continue
		}

		switch doc.Type {
		case "nation":
			result.State.Nations = append(result.State.Nations, nationFrom(doc.Frontmatter))
		case "province":
			result.State.Provinces = append(result.State.Provinces, provinceFrom(doc.Frontmatter))
		case "relation":
			result.State.Relations = append(result.State.Relations, relationFrom(doc.Frontmatter))
		case "scenario":
			result.Scenario = stringField(doc.Frontmatter, "name")
			if year, ok := intField(doc.Frontmatter, "start_year"); ok {
				result.State.Turn = year
			}
			if doc.Body != "" {
				narrative = append(narrative, doc.Body)
			}
		}
		result.FilesLoaded++
	}

	sort.SliceStable(result.State.Nations, func(i, j int) bool {
		return result.State.Nations[i].ID < result.State.Nations[j].ID
	})
	sort.SliceStable(result.State.Provinces, func(i, j int) bool {
		return result.State.Provinces[i].ID < result.State.Provinces[j].ID
	})
	result.State.Narrative = strings.Join(narrative, "\n")
	return result, nil
}

func nationFrom(fm map[string]any) world.Nation {
	treasury, _ := intField(fm, "treasury")
	return world.Nation{
		ID:       stringField(fm, "id"),
		Name:     stringField(fm, "name"),
		Color:    stringField(fm, "color"),
		Treasury: treasury,
	}
}

func provinceFrom(fm map[string]any) world.Province {
	p := world.Province{
		ID:                stringField(fm, "id"),
		Name:              stringField(fm, "name"),
		ParentCountryID:   stringField(fm, "parent_country_id"),
		ParentCountryName: stringField(fm, "parent_country_name"),
	}
	if owner := stringField(fm, "owner"); owner != "" {
		p.OwnerID = &owner
	}
	if sub, ok := fm["sub_national"].(bool); ok {
		p.IsSubNational = sub
	}
	if res, ok := fm["resources"].(map[string]any); ok {
		p.Resources.Population, _ = intField(res, "population")
		p.Resources.Defense, _ = intField(res, "defense")
		p.Resources.Economy, _ = intField(res, "economy")
		p.Resources.Technology, _ = intField(res, "technology")
	}
	return p
}

func relationFrom(fm map[string]any) world.Relation {
	nations := stringList(fm["nations"])
	rt, _ := world.ParseRelationType(stringField(fm, "relation"))
	rel := world.Relation{Type: rt, Treaties: stringList(fm["treaties"])}
	if len(nations) == 2 {
		rel.NationA, rel.NationB = nations[0], nations[1]
	}
	return rel
}

func stringField(fm map[string]any, key string) string {
	s, _ := fm[key].(string)
	return strings.TrimSpace(s)
}

func intField(fm map[string]any, key string) (int, bool) {
	switch v := fm[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func walkMarkdownFiles(roots []string, excludes []string) ([]string, error) {
	excluded := make([]string, 0, len(excludes))
	for _, path := range excludes {
		if path == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(path))
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
				return nil
			}
			if isExcluded(path, excluded) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func isExcluded(path string, excludes []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range excludes {
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
