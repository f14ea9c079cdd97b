package memory

import "fmt"

// Dialect identifies the SQL backend session memory is stored in.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// SQLConfig configures the session memory SQL connection.
type SQLConfig struct {
	Driver           Dialect `yaml:"driver"`
	ConnectionString string  `yaml:"connection_string"`
	MaxConns         int     `yaml:"max_conns,omitempty"`
	MaxIdle          int     `yaml:"max_idle,omitempty"`

	// Collection is the vector-store collection session and summary
	// embeddings are upserted into.
	Collection string `yaml:"collection,omitempty"`

	// SearchThreshold is the default cosine-similarity floor for semantic
	// search, per spec.
	SearchThreshold float32 `yaml:"search_threshold,omitempty"`
}

// SetDefaults fills unset fields with sensible defaults.
func (c *SQLConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DialectSQLite
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}
	if c.Collection == "" {
		c.Collection = "backplane_sessions"
	}
	if c.SearchThreshold == 0 {
		c.SearchThreshold = 0.7
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *SQLConfig) Validate() error {
	switch c.Driver {
	case DialectPostgres, DialectMySQL, DialectSQLite:
	default:
		return fmt.Errorf("unsupported session memory driver: %q (supported: postgres, mysql, sqlite)", c.Driver)
	}
	if c.ConnectionString == "" {
		return fmt.Errorf("session memory connection_string is required")
	}
	return nil
}

// driverName maps a Dialect to the database/sql driver name registered for
// it; "sqlite" is the dialect name but "sqlite3" is what mattn/go-sqlite3
// registers itself under.
func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return string(d)
}
