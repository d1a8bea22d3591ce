// Package sqldriver implements store.Driver once, parameterized by a small
// Dialect so Postgres and SQLite share every query instead of duplicating
// the roughly twenty entities in store/types.go — see DESIGN.md's Open
// Question decision 4.
package sqldriver

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"         // registers the "postgres" database/sql driver
	_ "modernc.org/sqlite"        // registers the "sqlite" database/sql driver (pure Go, no cgo)

	"github.com/pkg/errors"
)

// Dialect isolates the handful of places Postgres and SQLite syntax
// diverge: positional placeholders, upsert clauses, and autoincrement
// column definitions.
type Dialect interface {
	// Name is the database/sql driver name to pass to sql.Open.
	Name() string
	// Placeholder returns the positional bind marker for argument i (1-based).
	Placeholder(i int) string
	// Upsert appends an ON CONFLICT/UPSERT clause for the given conflict
	// columns and the comma-joined "col = excluded.col" assignments.
	Upsert(conflictCols []string, setClause string) string
	// AutoIncrementPK returns the column definition for a bigint identity
	// primary key.
	AutoIncrementPK() string
	// Returning appends a clause to read back a generated id, empty if the
	// dialect has no such clause (SQLite uses LastInsertId instead).
	Returning(col string) string
}

// postgresDialect targets Postgres via github.com/lib/pq.
type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (postgresDialect) Upsert(conflictCols []string, setClause string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictCols, ", "), setClause)
}

func (postgresDialect) AutoIncrementPK() string { return "BIGSERIAL PRIMARY KEY" }

func (postgresDialect) Returning(col string) string { return "RETURNING " + col }

// sqliteDialect targets SQLite via modernc.org/sqlite.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) Upsert(conflictCols []string, setClause string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictCols, ", "), setClause)
}

func (sqliteDialect) AutoIncrementPK() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (sqliteDialect) Returning(string) string { return "" }

// Postgres and SQLite are the two supported Dialect values.
var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)

// DialectByName resolves "postgres" or "sqlite" to its Dialect, the way
// the storage backend is named in configuration.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return nil, errors.Errorf("sqldriver: unknown dialect %q", name)
	}
}

// ph builds a comma-joined placeholder list starting at argument 1, e.g.
// "$1, $2, $3" or "?, ?, ?".
func ph(d Dialect, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

// Open connects to dsn using the given dialect.
func Open(dialect Dialect, dsn string) (*Driver, error) {
	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: open")
	}
	if dialect == SQLite {
		// SQLite serializes writers anyway, and a ":memory:" DSN gives each
		// pooled connection its own empty database unless the pool is
		// capped at one connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqldriver: ping")
	}
	drv := &Driver{db: db, dialect: dialect}
	return drv, nil
}
