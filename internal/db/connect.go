package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:attainment.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/attainment?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the outcome-hierarchy tables if they do not exist.
// Exposed so tests can run it against an in-memory sqlite handle.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS programs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL REFERENCES programs(id),
  term TEXT NOT NULL,
  name TEXT NOT NULL,
  credit_hours INTEGER NOT NULL CHECK (credit_hours > 0)
);

CREATE TABLE IF NOT EXISTS course_outcomes (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS program_outcomes (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL REFERENCES programs(id),
  code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS graduate_profiles (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL REFERENCES programs(id),
  code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_techniques (
  id TEXT PRIMARY KEY,
  course_outcome_id TEXT NOT NULL REFERENCES course_outcomes(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  weight REAL NOT NULL CHECK (weight >= 0 AND weight <= 100),
  rubric_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sub_outcomes (
  id TEXT PRIMARY KEY,
  course_outcome_id TEXT NOT NULL REFERENCES course_outcomes(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  weight REAL NOT NULL CHECK (weight >= 0 AND weight <= 100)
);

CREATE TABLE IF NOT EXISTS outcome_mappings (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,      -- co_po | po_gp
  source_id TEXT NOT NULL, -- course outcome id | program outcome id
  target_id TEXT NOT NULL, -- program outcome id | graduate profile id
  weight REAL NOT NULL CHECK (weight >= 0 AND weight <= 100)
);

CREATE TABLE IF NOT EXISTS enrollments (
  student_id TEXT NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  term TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  PRIMARY KEY (student_id, course_id, term)
);

CREATE TABLE IF NOT EXISTS raw_scores (
  student_id TEXT NOT NULL,
  source_kind TEXT NOT NULL, -- technique | sub_outcome
  source_id TEXT NOT NULL,
  term TEXT NOT NULL,
  value REAL NOT NULL CHECK (value >= 0 AND value <= 100),
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (student_id, source_kind, source_id, term)
);

CREATE TABLE IF NOT EXISTS computed_scores (
  level TEXT NOT NULL,     -- course_outcome | program_outcome | graduate_profile
  entity_id TEXT NOT NULL,
  student_id TEXT NOT NULL,
  term TEXT NOT NULL,
  value REAL NOT NULL,
  computed_at BIGINT NOT NULL,
  PRIMARY KEY (level, entity_id, student_id, term)
);

CREATE TABLE IF NOT EXISTS event_log (
  offset INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                        -- e.g., RecomputeCommitted
  key TEXT NOT NULL,                        -- natural key: recompute request id
  data TEXT NOT NULL,                       -- JSON payload
  created_at BIGINT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS programs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL REFERENCES programs(id),
  term TEXT NOT NULL,
  name TEXT NOT NULL,
  credit_hours INTEGER NOT NULL CHECK (credit_hours > 0)
);

CREATE TABLE IF NOT EXISTS course_outcomes (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS program_outcomes (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL REFERENCES programs(id),
  code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS graduate_profiles (
  id TEXT PRIMARY KEY,
  program_id TEXT NOT NULL REFERENCES programs(id),
  code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_techniques (
  id TEXT PRIMARY KEY,
  course_outcome_id TEXT NOT NULL REFERENCES course_outcomes(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  weight DOUBLE PRECISION NOT NULL CHECK (weight >= 0 AND weight <= 100),
  rubric_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sub_outcomes (
  id TEXT PRIMARY KEY,
  course_outcome_id TEXT NOT NULL REFERENCES course_outcomes(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  weight DOUBLE PRECISION NOT NULL CHECK (weight >= 0 AND weight <= 100)
);

CREATE TABLE IF NOT EXISTS outcome_mappings (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  source_id TEXT NOT NULL,
  target_id TEXT NOT NULL,
  weight DOUBLE PRECISION NOT NULL CHECK (weight >= 0 AND weight <= 100)
);

CREATE TABLE IF NOT EXISTS enrollments (
  student_id TEXT NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  term TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  PRIMARY KEY (student_id, course_id, term)
);

CREATE TABLE IF NOT EXISTS raw_scores (
  student_id TEXT NOT NULL,
  source_kind TEXT NOT NULL,
  source_id TEXT NOT NULL,
  term TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL CHECK (value >= 0 AND value <= 100),
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (student_id, source_kind, source_id, term)
);

CREATE TABLE IF NOT EXISTS computed_scores (
  level TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  student_id TEXT NOT NULL,
  term TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL,
  computed_at BIGINT NOT NULL,
  PRIMARY KEY (level, entity_id, student_id, term)
);

CREATE TABLE IF NOT EXISTS event_log (
  offset BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
