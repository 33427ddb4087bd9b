package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB wraps the sql handle with the dialect it was opened for. The sqlite
// dialect (modernc, pure Go) is the default; postgres runs through the pgx
// stdlib driver.
type DB struct {
	*sql.DB
	dialect string
}

func (d *DB) Dialect() string { return d.dialect }

// Open connects and runs pending migrations.
func Open(dialect, dsn string) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		// busy_timeout keeps concurrent writers queueing instead of
		// failing with SQLITE_BUSY.
		db, err = sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	case DialectPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// modernc serializes writes already; a single connection avoids
		// table-locked surprises between pooled conns.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	d := &DB{DB: db, dialect: dialect}
	if err := d.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Migrate applies schema versions beyond the recorded one.
func (d *DB) Migrate() error {
	var migrations map[int][]string
	switch d.dialect {
	case DialectSQLite:
		migrations = sqliteMigrations
	case DialectPostgres:
		migrations = postgresMigrations
	default:
		return fmt.Errorf("unsupported dialect: %s", d.dialect)
	}

	if _, err := d.Exec(`CREATE TABLE IF NOT EXISTS doxa_schema_version (num INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema version table: %w", err)
	}

	current := d.schemaVersion()
	if current >= schemaVersionMax {
		return nil
	}

	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for v := current + 1; v <= schemaVersionMax; v++ {
		ops, ok := migrations[v]
		if !ok {
			continue
		}
		for _, op := range ops {
			if _, err := tx.Exec(op); err != nil {
				return fmt.Errorf("migration %d failed: %w", v, err)
			}
		}
		var update string
		if current == 0 && v == current+1 {
			update = d.rebind(`INSERT INTO doxa_schema_version (num) VALUES (?)`)
		} else {
			update = d.rebind(`UPDATE doxa_schema_version SET num = ?`)
		}
		if _, err := tx.Exec(update, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) schemaVersion() int {
	var version sql.NullInt64
	err := d.QueryRow(`SELECT num FROM doxa_schema_version LIMIT 1`).Scan(&version)
	if err != nil || !version.Valid {
		return 0
	}
	return int(version.Int64)
}

// rebind converts ?-style placeholders to $n for postgres. Queries whose
// shape differs per dialect are written out twice instead.
func (d *DB) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders renders an IN-list: "?, ?, ?" or "$3, $4, $5".
func (d *DB) placeholders(count, start int) string {
	parts := make([]string, count)
	for i := range parts {
		if d.dialect == DialectPostgres {
			parts[i] = "$" + strconv.Itoa(start+i)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (d *DB) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if d.dialect == DialectPostgres {
		return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
	}
	return strings.Contains(msg, "UNIQUE constraint failed")
}

// sanitizeMatch wraps each word in quotes for a safe FTS5 query:
// "fix auth bug" -> `"fix" "auth" "bug"` (implicit AND).
func sanitizeMatch(query string) string {
	return strings.Join(quoteWords(query), " ")
}

// sanitizeMatchAny is the OR form used for related-proposition lookup, where
// any shared term should surface a match.
func sanitizeMatchAny(query string) string {
	return strings.Join(quoteWords(query), " OR ")
}

func quoteWords(query string) []string {
	var quoted []string
	for _, w := range strings.Fields(query) {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		quoted = append(quoted, `"`+w+`"`)
	}
	return quoted
}
