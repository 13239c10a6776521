package db

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

const migrationLockID = 74100315

// Migrate applies schema.sql. Every statement is idempotent, so it runs on each start.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "db: acquire migration advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			zap.L().Warn("db: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return eris.Wrap(err, "db: apply schema")
	}
	zap.L().Info("database schema applied")
	return nil
}
