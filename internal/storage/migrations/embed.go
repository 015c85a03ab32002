// Package migrations applies the embedded schema files: the snapshot and
// trade-log tables in PostgreSQL and the tick archive in ClickHouse.
// Files run in lexical order and are written to be idempotent, so the
// runners execute on every service start.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"embed"
)

// PostgresFS holds the snapshot and trade-log schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the tick archive schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// sqlFiles lists the .sql files of one embedded directory in lexical order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
