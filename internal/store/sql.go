package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" database/sql driver.
	_ "modernc.org/sqlite"             // Pure-Go SQLite driver.

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// Dialect selects the SQL flavour spoken by SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// schema is executed statement by statement on open. IF NOT EXISTS makes it
// safe to run on every startup against either dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		active_stage   TEXT NOT NULL,
		stale_stages   TEXT NOT NULL DEFAULT '',
		overview       TEXT NOT NULL DEFAULT '',
		problems       TEXT NOT NULL DEFAULT '',
		features       TEXT NOT NULL DEFAULT '',
		data_model     TEXT NOT NULL DEFAULT '',
		design         TEXT NOT NULL DEFAULT '',
		sections_draft TEXT NOT NULL DEFAULT '',
		export_notes   TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS project_approvals (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		stage      TEXT NOT NULL,
		PRIMARY KEY (project_id, stage)
	)`,
	`CREATE TABLE IF NOT EXISTS project_sections (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		section_id TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		summary    TEXT NOT NULL DEFAULT '',
		agent      TEXT NOT NULL DEFAULT '',
		completed  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, position)
	)`,
}

// SQLStore persists projects in a relational database. Each Save runs in a
// single transaction covering the project row, its approvals and its
// sections.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLStore)(nil)

// OpenSQLite opens (or creates) a SQLite database at path in WAL mode.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: sqlite: create parent directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: open: %w", err)
	}
	// One writer; pooled connections would each need their own PRAGMAs.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: sqlite: %s: %w", pragma, err)
		}
	}
	return newSQLStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to PostgreSQL through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: postgres: ping: %w", err)
	}
	return newSQLStore(ctx, db, DialectPostgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: create schema: %w", dialect, err)
		}
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
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

// Load reads every project with its approvals and sections.
func (s *SQLStore) Load(ctx context.Context) ([]blueprint.Project, error) {
	projects, err := s.load(ctx)
	if err != nil {
		return nil, &ReadError{Backend: string(s.dialect), Err: err}
	}
	return projects, nil
}

func (s *SQLStore) load(ctx context.Context) ([]blueprint.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, created_at, updated_at, active_stage,
		stale_stages, overview, problems, features, data_model, design, sections_draft, export_notes
		FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	var recs []*record
	byID := make(map[string]*record)
	for rows.Next() {
		var r record
		var stale string
		if err := rows.Scan(&r.ID, &r.Title, &r.CreatedAt, &r.UpdatedAt, &r.ActiveStage,
			&stale, &r.Overview, &r.Problems, &r.Features, &r.DataModel, &r.Design,
			&r.SectionsDraft, &r.ExportNotes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project: %w", err)
		}
		r.StaleStages = splitStages(stale)
		recs = append(recs, &r)
		byID[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT project_id, stage FROM project_approvals`)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	for rows.Next() {
		var id, stage string
		if err := rows.Scan(&id, &stage); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		if r, ok := byID[id]; ok {
			r.ApprovedStages = append(r.ApprovedStages, stage)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT project_id, section_id, title, summary, agent, completed
		FROM project_sections ORDER BY project_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var sec sectionRecord
		var completed int64
		if err := rows.Scan(&id, &sec.ID, &sec.Title, &sec.Summary, &sec.Agent, &completed); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sec.Completed = completed != 0
		if r, ok := byID[id]; ok {
			r.Sections = append(r.Sections, sec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projects := make([]blueprint.Project, 0, len(recs))
	for _, r := range recs {
		p, err := r.project()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	sortProjects(projects)
	return projects, nil
}

// Save upserts the project row and replaces its approvals and sections.
func (s *SQLStore) Save(ctx context.Context, p blueprint.Project) error {
	if err := p.Validate(); err != nil {
		return &WriteError{Backend: string(s.dialect), ProjectID: p.ID, Err: err}
	}
	if err := s.inTx(ctx, func(tx *sql.Tx) error { return s.save(ctx, tx, toRecord(p)) }); err != nil {
		return &WriteError{Backend: string(s.dialect), ProjectID: p.ID, Err: err}
	}
	return nil
}

func (s *SQLStore) save(ctx context.Context, tx *sql.Tx, r record) error {
	_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO projects (id, title, created_at, updated_at,
		active_stage, stale_stages, overview, problems, features, data_model, design, sections_draft, export_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			active_stage = excluded.active_stage,
			stale_stages = excluded.stale_stages,
			overview = excluded.overview,
			problems = excluded.problems,
			features = excluded.features,
			data_model = excluded.data_model,
			design = excluded.design,
			sections_draft = excluded.sections_draft,
			export_notes = excluded.export_notes`),
		r.ID, r.Title, r.CreatedAt, r.UpdatedAt, r.ActiveStage, strings.Join(r.StaleStages, ","),
		r.Overview, r.Problems, r.Features, r.DataModel, r.Design, r.SectionsDraft, r.ExportNotes)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM project_approvals WHERE project_id = ?`), r.ID); err != nil {
		return fmt.Errorf("clear approvals: %w", err)
	}
	for _, stage := range r.ApprovedStages {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO project_approvals (project_id, stage) VALUES (?, ?)`),
			r.ID, stage); err != nil {
			return fmt.Errorf("insert approval %s: %w", stage, err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM project_sections WHERE project_id = ?`), r.ID); err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}
	for i, sec := range r.Sections {
		completed := 0
		if sec.Completed {
			completed = 1
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO project_sections
			(project_id, position, section_id, title, summary, agent, completed)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			r.ID, i, sec.ID, sec.Title, sec.Summary, sec.Agent, completed); err != nil {
			return fmt.Errorf("insert section %s: %w", sec.ID, err)
		}
	}
	return nil
}

// Delete removes the project and its child rows.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM project_sections WHERE project_id = ?`,
			`DELETE FROM project_approvals WHERE project_id = ?`,
			`DELETE FROM projects WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &WriteError{Backend: string(s.dialect), ProjectID: id, Err: err}
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func splitStages(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
