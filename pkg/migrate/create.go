package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

// Dialects lists the migration subdirectories every schema change needs.
var Dialects = []string{"postgres", "sqlite"}

// CreateSQLMigration writes an empty goose migration with the same version
// under every dialect directory of root:
//
//	<root>/<dialect>/<YYYYMMDDHHMMSS>_<name>.sql
func CreateSQLMigration(root string, name string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("dir is required")
	}
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return nil, fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	filename := fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format("20060102150405"), safe)
	body := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %s
-- +goose StatementEnd
`, safe, safe)

	paths := make([]string, 0, len(Dialects))
	for _, dialect := range Dialects {
		dir := filepath.Join(root, dialect)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dir, err)
		}
		full := filepath.Join(dir, filename)
		if _, err := os.Stat(full); err == nil {
			return nil, fmt.Errorf("migration already exists: %s", full)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write migration %q: %w", full, err)
		}
		paths = append(paths, full)
	}
	return paths, nil
}
