package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// MigrationFile describes a freshly created migration pair
type MigrationFile struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Created: {{.Timestamp}}
{{- if .Description}}
-- Description: {{.Description}}
{{- end}}

-- Write your UP migration here

`

const migrationDownTemplate = `-- Migration: {{.Name}} (rollback)
-- Created: {{.Timestamp}}

-- Write your DOWN migration here

`

type migrationTemplateData struct {
	Name        string
	Timestamp   string
	Description string
}

// CreateMigration creates a new pair of timestamped up/down migration
// files in dir.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	if name == "" {
		return nil, fmt.Errorf("migration name cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now()
	version := now.Format("20060102150405")
	baseName := fmt.Sprintf("%s_%s", version, sanitizeName(name))

	upPath := filepath.Join(dir, baseName+".up.sql")
	downPath := filepath.Join(dir, baseName+".down.sql")

	data := migrationTemplateData{
		Name:        name,
		Timestamp:   now.Format(time.RFC3339),
		Description: description,
	}

	if err := writeTemplate(upPath, migrationUpTemplate, data); err != nil {
		return nil, err
	}
	if err := writeTemplate(downPath, migrationDownTemplate, data); err != nil {
		// keep the pair consistent
		_ = os.Remove(upPath)
		return nil, err
	}

	return &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   upPath,
		DownPath: downPath,
	}, nil
}

// ListMigrations returns the up-migration file names in dir, sorted by
// version.
func ListMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			migrations = append(migrations, entry.Name())
		}
	}

	sort.Strings(migrations)
	return migrations, nil
}

func writeTemplate(path, tmpl string, data migrationTemplateData) error {
	t, err := template.New(filepath.Base(path)).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse migration template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create migration file %s: %w", path, err)
	}
	defer f.Close()

	if err := t.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write migration file %s: %w", path, err)
	}
	return nil
}

// sanitizeName converts a human-readable migration name into a file
// name fragment: lowercase, alphanumeric, underscores.
func sanitizeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
