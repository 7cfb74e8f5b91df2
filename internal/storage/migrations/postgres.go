package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"

	"credit-tca/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger zerolog.Logger) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		logger.Debug().Str("db", "postgres").Str("file", file).Msg("migration applied")
	}

	logger.Info().Str("db", "postgres").Int("files", len(files)).Msg("migrations complete")
	return nil
}
