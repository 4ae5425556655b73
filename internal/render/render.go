// Package render executes the templates a site is assembled from.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"

	derrors "sitewright/internal/errors"
)

// Engine holds the parsed template set of one data root. Templates are
// loaded once per run and addressed by file name.
type Engine struct {
	templates *template.Template
}

// Load parses every file under the templates directory into one set, so
// templates can reference each other. Names are slash-relative paths, a
// file at science/publications.html is addressed exactly like that.
func Load(dir string) (*Engine, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, derrors.Fatal(derrors.CategoryConfig, "templates directory not found").
			WithContext("path", dir)
	}

	root := template.New("")
	count := 0
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := root.New(filepath.ToSlash(rel)).Parse(string(raw)); err != nil {
			return fmt.Errorf("template %s: %w", rel, err)
		}
		count++
		return nil
	})
	if walkErr != nil {
		return nil, derrors.WrapFatal(walkErr, derrors.CategoryConfig, "parse templates")
	}
	if count == 0 {
		return nil, derrors.Fatal(derrors.CategoryConfig, "templates directory is empty").
			WithContext("path", dir)
	}
	return &Engine{templates: root}, nil
}

// Has reports whether a template with the given name was loaded. Extra
// outputs like main.css and robots.txt are only rendered when their template
// exists.
func (e *Engine) Has(name string) bool {
	return e.templates.Lookup(name) != nil
}

// Render executes the named template with the given parameters. String
// values are escaped for their context; pass template.HTML for trusted
// markup such as converted page bodies.
func (e *Engine) Render(name string, params map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, params); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^}\s]+)\s*\}\}`)

// Expand substitutes `{{ key }}` placeholders in a pattern with values from
// params. Unknown keys are left untouched. Used for destination patterns and
// page bodies, which are data rather than trusted template code.
func Expand(pattern string, params map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := params[key]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}
