// Package store persists a consolidated export to a SQLite file and reads
// it back. Table, field and record order is kept through ordinal columns, so
// a loaded export serializes to the same JSON as the one saved.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zeebo/errs"
	_ "modernc.org/sqlite"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/export"
)

// Error is the class of store errors.
var Error = errs.Class("store")

// FormatVersion is written to dreq_meta and checked on load.
const FormatVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS dreq_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS dreq_tables (
	ordinal INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	base_id TEXT,
	base_name TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS dreq_fields (
	table_name TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	field_id TEXT NOT NULL,
	field JSON NOT NULL,
	PRIMARY KEY (table_name, ordinal)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS dreq_records (
	table_name TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	record_id TEXT NOT NULL,
	record JSON NOT NULL,
	PRIMARY KEY (table_name, ordinal)
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_records_id ON dreq_records(record_id);
`

// Save writes u to a fresh SQLite file at path, replacing any existing file.
func Save(path string, u *export.Unified) (err error) {
	if u == nil || u.Base == nil {
		return Error.New("nothing to save")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return Error.New("remove %s: %v", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Error.Wrap(fmt.Errorf("open sqlite %s: %w", path, err))
	}
	defer func() { _ = db.Close() }()

	// Bulk insert into a file nobody else reads yet.
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		if _, err := db.Exec(pragma); err != nil {
			return Error.Wrap(err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		return Error.Wrap(fmt.Errorf("create schema: %w", err))
	}

	tx, err := db.Begin()
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := insertAll(tx, u); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return Error.Wrap(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func insertAll(tx *sql.Tx, u *export.Unified) error {
	meta := [][2]string{{"format", FormatVersion}, {"version", u.Version}}
	for _, kv := range meta {
		if _, err := tx.Exec("INSERT INTO dreq_meta (key, value) VALUES (?, ?)", kv[0], kv[1]); err != nil {
			return Error.Wrap(fmt.Errorf("insert meta %s: %w", kv[0], err))
		}
	}

	stmtTable, err := tx.Prepare(`INSERT INTO dreq_tables
		(ordinal, name, id, display_name, base_id, base_name, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = stmtTable.Close() }()

	stmtField, err := tx.Prepare("INSERT INTO dreq_fields (table_name, ordinal, field_id, field) VALUES (?, ?, ?, ?)")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = stmtField.Close() }()

	stmtRecord, err := tx.Prepare("INSERT INTO dreq_records (table_name, ordinal, record_id, record) VALUES (?, ?, ?, ?)")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { _ = stmtRecord.Close() }()

	for i, name := range u.Base.Names() {
		t, _ := u.Base.Get(name)
		if _, err := stmtTable.Exec(i, name, t.ID, t.Name, t.BaseID, t.BaseName, t.Description); err != nil {
			return Error.Wrap(fmt.Errorf("insert table %s: %w", name, err))
		}

		j := 0
		for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
			data, err := json.Marshal(pair.Value)
			if err != nil {
				return Error.Wrap(err)
			}
			if _, err := stmtField.Exec(name, j, pair.Key, string(data)); err != nil {
				return Error.Wrap(fmt.Errorf("insert field %s.%s: %w", name, pair.Key, err))
			}
			j++
		}

		j = 0
		for pair := t.Records.Oldest(); pair != nil; pair = pair.Next() {
			data, err := json.Marshal(pair.Value)
			if err != nil {
				return Error.New("marshal record %s in %s: %v", pair.Key, name, err)
			}
			if _, err := stmtRecord.Exec(name, j, pair.Key, string(data)); err != nil {
				return Error.Wrap(fmt.Errorf("insert record %s in %s: %w", pair.Key, name, err))
			}
			j++
		}
	}
	return nil
}

// Load reads an export written by Save.
func Load(path string) (*export.Unified, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, Error.New("stat %s: %v", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("open sqlite %s: %w", path, err))
	}
	defer func() { _ = db.Close() }()

	meta, err := readMeta(db)
	if err != nil {
		return nil, err
	}
	if meta["format"] != FormatVersion {
		return nil, Error.New("%s: unsupported store format %q", path, meta["format"])
	}

	u := export.NewUnified(meta["version"])
	names, err := loadTables(db, u.Base)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		t, _ := u.Base.Get(name)
		if err := loadFields(db, name, t); err != nil {
			return nil, err
		}
		if err := loadRecords(db, name, t); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Meta returns the key/value metadata of a store file without loading its
// tables.
func Meta(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, Error.New("stat %s: %v", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("open sqlite %s: %w", path, err))
	}
	defer func() { _ = db.Close() }()
	return readMeta(db)
}

func readMeta(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT key, value FROM dreq_meta")
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("query meta: %w", err))
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, Error.Wrap(err)
		}
		meta[k] = v
	}
	return meta, Error.Wrap(rows.Err())
}

func loadTables(db *sql.DB, base *export.Base) ([]string, error) {
	rows, err := db.Query(`SELECT name, id, display_name,
		COALESCE(base_id, ''), COALESCE(base_name, ''), COALESCE(description, '')
		FROM dreq_tables ORDER BY ordinal`)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("query tables: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name, id, display string
		t := export.NewTable("", "")
		if err := rows.Scan(&name, &id, &display, &t.BaseID, &t.BaseName, &t.Description); err != nil {
			return nil, Error.Wrap(err)
		}
		t.ID, t.Name = id, display
		base.Set(name, t)
		names = append(names, name)
	}
	return names, Error.Wrap(rows.Err())
}

func loadFields(db *sql.DB, name string, t *export.Table) error {
	rows, err := db.Query("SELECT field_id, field FROM dreq_fields WHERE table_name = ? ORDER BY ordinal", name)
	if err != nil {
		return Error.Wrap(fmt.Errorf("query fields of %s: %w", name, err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return Error.Wrap(err)
		}
		var f export.Field
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return Error.New("field %s.%s: %v", name, id, err)
		}
		t.Fields.Set(id, f)
	}
	return Error.Wrap(rows.Err())
}

func loadRecords(db *sql.DB, name string, t *export.Table) error {
	rows, err := db.Query("SELECT record_id, record FROM dreq_records WHERE table_name = ? ORDER BY ordinal", name)
	if err != nil {
		return Error.Wrap(fmt.Errorf("query records of %s: %w", name, err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return Error.Wrap(err)
		}
		var rec export.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return Error.New("record %s in %s: %v", id, name, err)
		}
		t.Records.Set(id, rec)
	}
	return Error.Wrap(rows.Err())
}
