package sqlstore

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL differences between the supported drivers.
type Dialect struct {
	// Name is the migration set name: "postgres" or "sqlite".
	Name   string
	Driver string
	// Numbered placeholders ($1) instead of positional ones (?).
	numbered bool
	likeOp   string
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", numbered: true, likeOp: "ILIKE"}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite3", likeOp: "LIKE"}
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case Postgres.Driver, "postgres":
		return Postgres, nil
	case SQLite.Driver, "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

func (d Dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// conflictStatus reports 409 for uniqueness and foreign key violations.
func conflictStatus(err error) int {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintForeignKey:
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	}
	return 0
}
