package dashboard

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"triad-console/internal/events"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Render executes every embedded dashboard template and writes the results
// to outDir. Templates read datasource uids through env, which fails when
// the variable is unset.
func Render(outDir string) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
		"eventTable": func() string { return events.EventTableName },
		"stateTable": func() string { return events.StateTableName },
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	names, err := fs.Glob(templates, "templates/*.json.tmpl")
	if err != nil {
		return err
	}
	for _, name := range names {
		t, err := template.New(path.Base(name)).Funcs(funcMap).ParseFS(templates, name)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(path.Base(name), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, nil); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
