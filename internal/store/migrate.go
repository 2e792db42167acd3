package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate executes every *.up.sql file in dir in lexical order. The bundled
// migrations are idempotent, so running them on each start is safe.
func Migrate(ctx context.Context, db *pgxpool.Pool, dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	applied := make([]string, 0, len(files))
	for _, f := range files {
		sql, err := os.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", f, err)
		}
		applied = append(applied, filepath.Base(f))
	}
	return applied, nil
}
