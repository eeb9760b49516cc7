package migrate

import (
	"fmt"
	"os"
	"strings"
)

const (
	gooseUp   = "-- +goose Up"
	gooseDown = "-- +goose Down"
)

// ValidateDir checks filenames and that every file has a non-empty Up
// section followed by a Down section.
func ValidateDir(dir string) error {
	migrations, err := ListSQLMigrations(dir)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		b, err := os.ReadFile(m.Path)
		if err != nil {
			return fmt.Errorf("read file %q: %w", m.Path, err)
		}
		if err := validateSQL(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", m.Path, err)
		}
	}
	return nil
}

func validateSQL(txt string) error {
	up := strings.Index(txt, gooseUp)
	if up < 0 {
		return fmt.Errorf("missing %q", gooseUp)
	}
	down := strings.Index(txt, gooseDown)
	if down < 0 {
		return fmt.Errorf("missing %q", gooseDown)
	}
	if down < up {
		return fmt.Errorf("%q must come before %q", gooseUp, gooseDown)
	}
	if !hasStatement(txt[up+len(gooseUp) : down]) {
		return fmt.Errorf("up section has no statements")
	}
	return nil
}

// hasStatement reports whether section contains any line that is not a
// comment or blank.
func hasStatement(section string) bool {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return true
		}
	}
	return false
}
