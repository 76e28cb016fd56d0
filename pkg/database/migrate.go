package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"

	schema "github.com/tracksidelive/trackside/pkg/database/sql"
	"github.com/tracksidelive/trackside/pkg/logging"
)

// ApplySchema executes the embedded schema files in lexical order. Every
// statement is idempotent (CREATE TABLE IF NOT EXISTS), so this runs at each
// startup instead of tracking migration versions.
func ApplySchema(db *sql.DB, logger logging.Logger) error {
	entries, err := fs.Glob(schema.Content, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		body, err := schema.Content.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.Exec(string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		logger.WithField("file", name).Debug("Applied schema file")
	}
	return nil
}
