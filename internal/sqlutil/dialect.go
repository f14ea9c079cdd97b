// Package sqlutil holds the small dialect-branching helpers shared by every
// SQL-backed store in the backplane, factored out of the pattern
// internal/memory established first: postgres uses $N placeholders, mysql
// and sqlite use ?, and each dialect spells its auto-increment column
// differently.
package sqlutil

import "fmt"

// Dialect identifies which SQL flavor a store is talking to.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// DriverName maps a Dialect to the database/sql driver name registered for it.
func (d Dialect) DriverName() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite3"
	default:
		return "postgres"
	}
}

// Placeholder returns the positional placeholder for argument n (1-indexed)
// in the given dialect: "$n" for postgres, "?" for mysql/sqlite.
func Placeholder(d Dialect, n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// AutoIncrementColumn returns the column definition fragment for a
// dialect-appropriate auto-incrementing integer primary key.
func AutoIncrementColumn(d Dialect) string {
	switch d {
	case DialectMySQL:
		return "INT AUTO_INCREMENT PRIMARY KEY"
	case DialectSQLite:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return "SERIAL PRIMARY KEY"
	}
}
