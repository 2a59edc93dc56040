package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/me/mdconsole/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	designations     *table[model.Designation]
	plants           *table[model.Plant]
	plantAssignments *table[model.PlantAssignment]
	documents        *table[model.Document]
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
	s.designations = designationTable(s)
	s.plants = plantTable(s)
	s.plantAssignments = plantAssignmentTable(s)
	s.documents = documentTable(s)
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) Designations() Repository[model.Designation] { return s.designations }
func (s *SQLiteStore) Plants() Repository[model.Plant]             { return s.plants }
func (s *SQLiteStore) PlantAssignments() Repository[model.PlantAssignment] {
	return s.plantAssignments
}
func (s *SQLiteStore) Documents() Repository[model.Document] { return s.documents }

// table is a Repository over one SQLite table. Every table has an integer
// id, the entity's own columns and the stamp columns.
type table[T model.Record] struct {
	s       *SQLiteStore
	name    string // SQL table name
	entity  string // audit_log entity name
	columns []string
	search  []string // columns matched by LIKE
	// fields returns scan destinations for columns, in order.
	fields func(*T) []any
	id     func(*T) *int64
	stamp  func(*T) *model.Stamp
	// prepare runs inside the write transaction before insert or update.
	prepare func(ctx context.Context, tx *sql.Tx, rec *T) error
	// duplicate describes a unique-constraint violation for rec.
	duplicate func(rec *T) string
}

func (t *table[T]) selectSQL() string {
	return "SELECT id, " + strings.Join(t.columns, ", ") + ", created_by, modified_by, modified_on FROM " + t.name
}

func (t *table[T]) scanDest(rec *T) []any {
	st := t.stamp(rec)
	dest := []any{t.id(rec)}
	dest = append(dest, t.fields(rec)...)
	return append(dest, &st.CreatedBy, &st.ModifiedBy, timestamp{&st.ModifiedOn})
}

func (t *table[T]) values(rec *T) []any {
	fields := t.fields(rec)
	vals := make([]any, len(fields))
	for i, f := range fields {
		vals[i] = columnValue(f)
	}
	return vals
}

// where builds the search filter. LIKE wildcards in the search text are
// matched literally.
func (t *table[T]) where(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" || len(t.search) == 0 {
		return "", nil
	}
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search)
	pattern := "%" + esc + "%"
	conds := make([]string, len(t.search))
	args := make([]any, len(t.search))
	for i, col := range t.search {
		conds[i] = col + ` LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	return " WHERE (" + strings.Join(conds, " OR ") + ")", args
}

func (t *table[T]) List(ctx context.Context, opts model.ListOptions) ([]T, int, error) {
	opts.Clamp()
	t.s.logger.Debug("sql", "op", "list", "table", t.name, "page", opts.PageNumber, "size", opts.PageSize, "search", opts.Search)

	whereSQL, args := t.where(opts.Search)

	var total int
	if err := t.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.name+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", t.name, err)
	}

	pageArgs := append(append([]any{}, args...), opts.PageSize, opts.Offset())
	rows, err := t.s.db.QueryContext(ctx, t.selectSQL()+whereSQL+` ORDER BY id LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var rec T
		if err := rows.Scan(t.scanDest(&rec)...); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", t.name, err)
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (t *table[T]) Get(ctx context.Context, id int64) (*T, error) {
	t.s.logger.Debug("sql", "op", "select", "table", t.name, "id", id)

	var rec T
	err := t.s.db.QueryRowContext(ctx, t.selectSQL()+` WHERE id = ?`, id).Scan(t.scanDest(&rec)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", t.name, id, err)
	}
	return &rec, nil
}

func (t *table[T]) Create(ctx context.Context, rec *T, audit model.Audit) error {
	t.s.logger.Debug("sql", "op", "insert", "table", t.name, "actor", audit.Actor)

	return t.s.withTx(ctx, func(tx *sql.Tx) error {
		if t.prepare != nil {
			if err := t.prepare(ctx, tx, rec); err != nil {
				return err
			}
		}
		st := t.stamp(rec)
		st.CreatedBy = audit.Actor
		st.ModifiedBy = audit.Actor
		st.ModifiedOn = audit.AuditOn.UTC()

		cols := append(append([]string{}, t.columns...), "created_by", "modified_by", "modified_on")
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		args := append(t.values(rec), st.CreatedBy, st.ModifiedBy, timestamp{&st.ModifiedOn})

		res, err := tx.ExecContext(ctx,
			`INSERT INTO `+t.name+` (`+strings.Join(cols, ", ")+`) VALUES (`+marks+`)`, args...)
		if err != nil {
			return t.classify(err, rec)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		*t.id(rec) = id
		return t.s.writeAudit(ctx, tx, t.entity, id, "create", audit)
	})
}

func (t *table[T]) Update(ctx context.Context, rec *T, audit model.Audit) error {
	id := *t.id(rec)
	t.s.logger.Debug("sql", "op", "update", "table", t.name, "id", id, "actor", audit.Actor)

	return t.s.withTx(ctx, func(tx *sql.Tx) error {
		var createdBy string
		err := tx.QueryRowContext(ctx, `SELECT created_by FROM `+t.name+` WHERE id = ?`, id).Scan(&createdBy)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s %d", ErrNotFound, t.entity, id)
		}
		if err != nil {
			return err
		}
		if t.prepare != nil {
			if err := t.prepare(ctx, tx, rec); err != nil {
				return err
			}
		}
		st := t.stamp(rec)
		st.CreatedBy = createdBy
		st.ModifiedBy = audit.Actor
		st.ModifiedOn = audit.AuditOn.UTC()

		sets := make([]string, 0, len(t.columns)+2)
		for _, c := range t.columns {
			sets = append(sets, c+" = ?")
		}
		sets = append(sets, "modified_by = ?", "modified_on = ?")
		args := append(t.values(rec), st.ModifiedBy, timestamp{&st.ModifiedOn}, id)

		if _, err := tx.ExecContext(ctx,
			`UPDATE `+t.name+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return t.classify(err, rec)
		}
		return t.s.writeAudit(ctx, tx, t.entity, id, "update", audit)
	})
}

func (t *table[T]) Delete(ctx context.Context, id int64, audit model.Audit) error {
	t.s.logger.Debug("sql", "op", "delete", "table", t.name, "id", id, "actor", audit.Actor)

	return t.s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE id = ?`, id)
		if err != nil {
			if isConstraint(err, "FOREIGN KEY") {
				return fmt.Errorf("%w: %s %d", ErrInUse, t.entity, id)
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %d", ErrNotFound, t.entity, id)
		}
		return t.s.writeAudit(ctx, tx, t.entity, id, "delete", audit)
	})
}

// classify maps constraint failures to the store's sentinel errors.
func (t *table[T]) classify(err error, rec *T) error {
	switch {
	case isConstraint(err, "UNIQUE"):
		what := t.entity
		if t.duplicate != nil {
			what = t.duplicate(rec)
		}
		return fmt.Errorf("%w: %s", ErrDuplicate, what)
	case isConstraint(err, "FOREIGN KEY"):
		return fmt.Errorf("%w: %v", ErrReference, err)
	}
	return err
}

func isConstraint(err error, kind string) bool {
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") && strings.Contains(msg, kind)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) writeAudit(ctx context.Context, tx *sql.Tx, entity string, id int64, action string, a model.Audit) error {
	on := a.AuditOn.UTC()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (entity, record_id, action, actor, signature, reason, audit_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entity, id, action, a.Actor, a.Signature, a.Reason, timestamp{&on},
	)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// --- Table definitions ---

func designationTable(s *SQLiteStore) *table[model.Designation] {
	return &table[model.Designation]{
		s:       s,
		name:    "designations",
		entity:  model.DesignationEntity.Name,
		columns: []string{"code", "name", "description"},
		search:  []string{"code", "name", "description"},
		fields: func(d *model.Designation) []any {
			return []any{&d.Code, &d.Name, &d.Description}
		},
		id:    func(d *model.Designation) *int64 { return &d.ID },
		stamp: func(d *model.Designation) *model.Stamp { return &d.Stamp },
		duplicate: func(d *model.Designation) string {
			return fmt.Sprintf("designation code %q already exists", d.Code)
		},
	}
}

func plantTable(s *SQLiteStore) *table[model.Plant] {
	return &table[model.Plant]{
		s:       s,
		name:    "plants",
		entity:  model.PlantEntity.Name,
		columns: []string{"code", "name", "location"},
		search:  []string{"code", "name", "location"},
		fields: func(p *model.Plant) []any {
			return []any{&p.Code, &p.Name, &p.Location}
		},
		id:    func(p *model.Plant) *int64 { return &p.ID },
		stamp: func(p *model.Plant) *model.Stamp { return &p.Stamp },
		duplicate: func(p *model.Plant) string {
			return fmt.Sprintf("plant code %q already exists", p.Code)
		},
	}
}

func plantAssignmentTable(s *SQLiteStore) *table[model.PlantAssignment] {
	return &table[model.PlantAssignment]{
		s:       s,
		name:    "plant_assignments",
		entity:  model.PlantAssignmentEntity.Name,
		columns: []string{"plant_id", "plant_name", "user_ids"},
		search:  []string{"plant_name", "user_ids"},
		fields: func(a *model.PlantAssignment) []any {
			return []any{&a.PlantID, &a.PlantName, idListColumn{&a.UserIDs}}
		},
		id:    func(a *model.PlantAssignment) *int64 { return &a.ID },
		stamp: func(a *model.PlantAssignment) *model.Stamp { return &a.Stamp },
		// The plant name is denormalised so lists can be searched by it.
		prepare: func(ctx context.Context, tx *sql.Tx, a *model.PlantAssignment) error {
			name, err := plantName(ctx, tx, a.PlantID)
			if err != nil {
				return err
			}
			a.PlantName = name
			return nil
		},
		duplicate: func(a *model.PlantAssignment) string {
			return fmt.Sprintf("plant %d already has an assignment", a.PlantID)
		},
	}
}

func documentTable(s *SQLiteStore) *table[model.Document] {
	return &table[model.Document]{
		s:       s,
		name:    "documents",
		entity:  model.DocumentEntity.Name,
		columns: []string{"number", "title", "version", "plant_id"},
		search:  []string{"number", "title"},
		fields: func(d *model.Document) []any {
			return []any{&d.Number, &d.Title, &d.Version, optionalID{&d.PlantID}}
		},
		id:    func(d *model.Document) *int64 { return &d.ID },
		stamp: func(d *model.Document) *model.Stamp { return &d.Stamp },
		prepare: func(ctx context.Context, tx *sql.Tx, d *model.Document) error {
			if d.PlantID == 0 {
				return nil
			}
			_, err := plantName(ctx, tx, d.PlantID)
			return err
		},
		duplicate: func(d *model.Document) string {
			return fmt.Sprintf("document %s version %s already exists", d.Number, d.Version)
		},
	}
}

func plantName(ctx context.Context, tx *sql.Tx, id int64) (string, error) {
	var name string
	err := tx.QueryRowContext(ctx, `SELECT name FROM plants WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: plant %d", ErrReference, id)
	}
	return name, err
}
