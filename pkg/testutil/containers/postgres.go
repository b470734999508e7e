//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	pgstore "medigraph/internal/store/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with an open
// connection pool and the schema already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

var (
	pgOnce   sync.Once
	pgShared *PostgresContainer
	pgErr    error
)

// GetPostgres returns a shared Postgres container for the test binary.
// Suites are expected to truncate the tables they touch in SetupTest.
func GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	pgOnce.Do(func() {
		ctx := context.Background()

		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("medigraph_test"),
			tcpostgres.WithUsername("medigraph"),
			tcpostgres.WithPassword("medigraph"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			pgErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgErr = fmt.Errorf("postgres connection string: %w", err)
			return
		}

		db, err := sql.Open("pgx", dsn)
		if err != nil {
			pgErr = fmt.Errorf("open postgres pool: %w", err)
			return
		}
		if err := db.PingContext(ctx); err != nil {
			pgErr = fmt.Errorf("ping postgres: %w", err)
			return
		}
		if err := pgstore.Migrate(ctx, db); err != nil {
			pgErr = fmt.Errorf("apply schema: %w", err)
			return
		}

		pgShared = &PostgresContainer{Container: container, DSN: dsn, DB: db}
	})

	if pgErr != nil {
		t.Fatalf("postgres container: %v", pgErr)
	}
	return pgShared
}

// TruncateTables resets the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE"
	_, err := p.DB.ExecContext(ctx, stmt)
	return err
}
