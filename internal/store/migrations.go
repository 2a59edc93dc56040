package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all master-data tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS designations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		code        TEXT NOT NULL UNIQUE COLLATE NOCASE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_by  TEXT NOT NULL DEFAULT '',
		modified_by TEXT NOT NULL DEFAULT '',
		modified_on TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS plants (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		code        TEXT NOT NULL UNIQUE COLLATE NOCASE,
		name        TEXT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		created_by  TEXT NOT NULL DEFAULT '',
		modified_by TEXT NOT NULL DEFAULT '',
		modified_on TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS plant_assignments (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		plant_id    INTEGER NOT NULL UNIQUE REFERENCES plants(id),
		plant_name  TEXT NOT NULL DEFAULT '',
		user_ids    TEXT NOT NULL DEFAULT '',
		created_by  TEXT NOT NULL DEFAULT '',
		modified_by TEXT NOT NULL DEFAULT '',
		modified_on TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS documents (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		number      TEXT NOT NULL,
		title       TEXT NOT NULL,
		version     TEXT NOT NULL,
		plant_id    INTEGER REFERENCES plants(id),
		created_by  TEXT NOT NULL DEFAULT '',
		modified_by TEXT NOT NULL DEFAULT '',
		modified_on TEXT NOT NULL,
		UNIQUE (number, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_plant_id ON documents(plant_id)`,

	// Audit trail: one row per mutation, carrying the reason for change.
	`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		entity     TEXT NOT NULL,
		record_id  INTEGER NOT NULL,
		action     TEXT NOT NULL,
		actor      TEXT NOT NULL,
		signature  TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		audit_on   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_record ON audit_log(entity, record_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "designations",
		column:   "description",
		alterSQL: "ALTER TABLE designations ADD COLUMN description TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "documents",
		column:   "plant_id",
		alterSQL: "ALTER TABLE documents ADD COLUMN plant_id INTEGER REFERENCES plants(id)",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_documents_plant_id ON documents(plant_id)",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
