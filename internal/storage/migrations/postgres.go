package migrations

import (
	"context"
	"fmt"
	"io/fs"

	"spread-strategy-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the snapshot and trade-log schema. A
// migration file runs as a single Exec, so multi-statement files are fine
// here (unlike ClickHouse).
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
