// Command gendocs generates the settings reference from the registry.
// This keeps the documentation in sync with the registered settings.
//
// Usage:
//
//	go run ./cmd/gendocs [output-dir]
//	go generate ./internal/config/...
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/procwait/internal/config/loader"
	"github.com/dshills/procwait/internal/config/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	outDir := "docs"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}

	// Relative paths resolve against the project root so the command
	// works from any package directory under go generate.
	if !filepath.IsAbs(outDir) {
		root, err := findProjectRoot()
		if err != nil {
			return fmt.Errorf("failed to find project root: %w", err)
		}
		outDir = filepath.Join(root, outDir)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	mdPath := filepath.Join(outDir, "SETTINGS.md")
	if err := os.WriteFile(mdPath, []byte(generateMarkdown()), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Printf("Generated %s\n", mdPath)

	jsonDoc, err := generateJSON()
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(outDir, "settings.json")
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Printf("Generated %s\n", jsonPath)

	return nil
}

// findProjectRoot walks up the directory tree to find go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

// generateMarkdown renders the settings reference as a Markdown table
// per section.
func generateMarkdown() string {
	var buf bytes.Buffer

	buf.WriteString("# Procwait Settings\n\n")
	buf.WriteString("Settings merge from three layers, strongest first: environment\n")
	buf.WriteString("variables, the TOML configuration file, then registered defaults.\n")
	buf.WriteString("Durations are plain integers in milliseconds.\n\n")
	buf.WriteString("> **Note**: This file is auto-generated from the setting registry in\n")
	buf.WriteString("> `internal/config/registry`. Do not edit manually. Run\n")
	buf.WriteString("> `go run ./cmd/gendocs` to regenerate.\n\n")

	reg := registry.Global()
	for _, section := range reg.Sections() {
		buf.WriteString(fmt.Sprintf("## [%s]\n\n", section))
		buf.WriteString("| Setting | Type | Default | Description |\n")
		buf.WriteString("|---------|------|---------|-------------|\n")
		for _, s := range reg.Section(section) {
			buf.WriteString(fmt.Sprintf("| `%s` | %s | `%v` | %s%s |\n",
				s.Path, s.Type, s.Default, s.Description, constraintNote(s)))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Environment variables\n\n")
	buf.WriteString(fmt.Sprintf("Every setting can be overridden with a `%s*` variable: uppercase\n", loader.EnvPrefix))
	buf.WriteString("the path and replace dots with underscores, so `wait.readTimeout`\n")
	buf.WriteString("becomes `PROCWAIT_WAIT_READ_TIMEOUT`.\n")

	return buf.String()
}

// constraintNote renders a setting's validation constraints for the
// description column.
func constraintNote(s *registry.Setting) string {
	var notes []string
	if len(s.Enum) > 0 {
		vals := make([]string, len(s.Enum))
		for i, v := range s.Enum {
			vals[i] = fmt.Sprintf("%v", v)
		}
		notes = append(notes, "one of "+strings.Join(vals, ", "))
	}
	if s.Minimum != nil {
		notes = append(notes, fmt.Sprintf("min %v", *s.Minimum))
	}
	if s.Maximum != nil {
		notes = append(notes, fmt.Sprintf("max %v", *s.Maximum))
	}
	if s.Pattern != "" {
		notes = append(notes, "pattern `"+s.Pattern+"`")
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ", ") + ")"
}

// generateJSON renders the registry as machine-readable JSON.
func generateJSON() (string, error) {
	doc := `{"tool":"procwait","settings":[]}`
	var err error
	if doc, err = sjson.Set(doc, "envPrefix", loader.EnvPrefix); err != nil {
		return "", err
	}
	for _, s := range registry.Global().All() {
		entry, err := settingJSON(s)
		if err != nil {
			return "", err
		}
		if doc, err = sjson.SetRaw(doc, "settings.-1", entry); err != nil {
			return "", fmt.Errorf("appending %s: %w", s.Path, err)
		}
	}
	return string(pretty.Pretty([]byte(doc))), nil
}

// settingJSON renders one setting as a JSON object, leaving out the
// constraint fields a setting does not carry.
func settingJSON(s *registry.Setting) (string, error) {
	type field struct {
		path  string
		value any
	}
	fields := []field{
		{"path", s.Path},
		{"type", s.Type.String()},
		{"scope", s.Scope.String()},
		{"default", s.Default},
		{"description", s.Description},
	}
	if len(s.Tags) > 0 {
		fields = append(fields, field{"tags", s.Tags})
	}
	if s.Minimum != nil {
		fields = append(fields, field{"minimum", *s.Minimum})
	}
	if s.Maximum != nil {
		fields = append(fields, field{"maximum", *s.Maximum})
	}
	if len(s.Enum) > 0 {
		fields = append(fields, field{"enum", s.Enum})
	}
	if s.Pattern != "" {
		fields = append(fields, field{"pattern", s.Pattern})
	}

	entry := "{}"
	for _, f := range fields {
		var err error
		if entry, err = sjson.Set(entry, f.path, f.value); err != nil {
			return "", fmt.Errorf("encoding %s %s: %w", s.Path, f.path, err)
		}
	}
	return entry, nil
}
