// internal/datastore/migrate.go
//
// Schema migrations.
//   - SQL files live in ./migrations and are embedded into the binary.
//   - Applied file names are recorded in _migrations, so reruns are no-ops.
//   - Each file runs inside its own transaction, one statement at a time.
//
// The SQL is kept to the subset Postgres and SQLite both accept.

package datastore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies any embedded migrations that have not run yet.
func (c *Client) Migrate(ctx context.Context) error {
	return c.migrate(ctx, migrationsFS)
}

func (c *Client) migrate(ctx context.Context, fsys fs.FS) error {
	db := c.db.WithContext(ctx)
	if err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name VARCHAR(255) PRIMARY KEY)`).Error; err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int64
		if err := db.Table("_migrations").Where("name = ?", f).Count(&done).Error; err != nil {
			return fmt.Errorf("query _migrations: %w", err)
		}
		if done > 0 {
			c.log.Debug().Str("migration", f).Msg("already applied")
			continue
		}

		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range splitStatements(string(body)) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("apply %s: %w", f, err)
				}
			}
			if err := tx.Exec(`INSERT INTO _migrations (name) VALUES (?)`, f).Error; err != nil {
				return fmt.Errorf("record %s: %w", f, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		c.log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// splitStatements drops "--" comment lines and splits on semicolons.
// Migration files must not put semicolons inside string literals.
func splitStatements(sqlText string) []string {
	var b strings.Builder
	for _, line := range strings.Split(sqlText, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
