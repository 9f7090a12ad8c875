package database

import (
	"fmt"
	"io/fs"
	"sort"

	"newsdesk/pkg/database/sql"
	"newsdesk/pkg/logging"
)

// ApplySchema executes all embedded schema files against the connection,
// in lexical order. Statements are written to be idempotent so this is safe
// to run on every startup.
func ApplySchema(db PostgresConn, logger logging.Logger) error {
	entries, err := fs.Glob(sql.Content, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		ddl, err := fs.ReadFile(sql.Content, name)
		if err != nil {
			return fmt.Errorf("read schema file %s: %w", name, err)
		}
		if _, err := db.Exec(string(ddl)); err != nil {
			return fmt.Errorf("apply schema file %s: %w", name, err)
		}
		logger.WithField("file", name).Debug("Applied schema file")
	}

	return nil
}
