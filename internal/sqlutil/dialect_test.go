package sqlutil

import "testing"

func TestPlaceholder(t *testing.T) {
	if got := Placeholder(DialectPostgres, 3); got != "$3" {
		t.Fatalf("postgres placeholder = %q", got)
	}
	if got := Placeholder(DialectMySQL, 3); got != "?" {
		t.Fatalf("mysql placeholder = %q", got)
	}
	if got := Placeholder(DialectSQLite, 1); got != "?" {
		t.Fatalf("sqlite placeholder = %q", got)
	}
}

func TestDriverName(t *testing.T) {
	if DialectSQLite.DriverName() != "sqlite3" {
		t.Fatal("expected sqlite3 driver name")
	}
	if DialectMySQL.DriverName() != "mysql" {
		t.Fatal("expected mysql driver name")
	}
	if DialectPostgres.DriverName() != "postgres" {
		t.Fatal("expected postgres driver name")
	}
}
