//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// KuzuStore persists projects in an embedded KuzuDB graph. Each project is a
// Project node holding its JSON body; approvals are APPROVED edges to the
// five Stage nodes so stage-level queries can run in Cypher. It requires CGO
// because go-kuzu wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

var _ Store = (*KuzuStore)(nil)

var kuzuDDL = []string{
	`CREATE NODE TABLE IF NOT EXISTS Project(
		id STRING,
		title STRING,
		created_at STRING,
		updated_at STRING,
		body STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Stage(
		name STRING,
		rank INT64,
		PRIMARY KEY(name)
	)`,
	`CREATE REL TABLE IF NOT EXISTS APPROVED(FROM Project TO Stage)`,
}

// OpenKuzu opens a KuzuDB database at path. Use ":memory:" for an in-memory
// database. KuzuDB creates the leaf directory itself.
func OpenKuzu(ctx context.Context, path string) (*KuzuStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: kuzu: create parent directory: %w", err)
		}
	}
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("store: kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: kuzu: open connection: %w", err)
	}
	s := &KuzuStore{db: db, conn: conn}
	if err := s.initSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *KuzuStore) initSchema(_ context.Context) error {
	for _, stmt := range kuzuDDL {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("store: kuzu: init schema: %w", err)
		}
		res.Close()
	}
	for _, st := range blueprint.Stages() {
		err := s.exec(`MERGE (s:Stage {name: $name}) ON CREATE SET s.rank = $rank`,
			map[string]any{"name": st.String(), "rank": int64(st.Order())})
		if err != nil {
			return fmt.Errorf("store: kuzu: seed stages: %w", err)
		}
	}
	return nil
}

// Close releases the connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// Load reads every Project node.
func (s *KuzuStore) Load(_ context.Context) ([]blueprint.Project, error) {
	rows, err := s.query(`MATCH (p:Project) RETURN p.body ORDER BY p.created_at, p.id`, nil)
	if err != nil {
		return nil, &ReadError{Backend: "kuzu", Err: err}
	}
	projects := make([]blueprint.Project, 0, len(rows))
	for _, row := range rows {
		var r record
		if err := json.Unmarshal([]byte(toString(row[0])), &r); err != nil {
			return nil, &ReadError{Backend: "kuzu", Err: fmt.Errorf("decode project: %w", err)}
		}
		p, err := r.project()
		if err != nil {
			return nil, &ReadError{Backend: "kuzu", Err: err}
		}
		projects = append(projects, p)
	}
	sortProjects(projects)
	return projects, nil
}

// ApprovedStageNames returns the stages approved for a project by walking
// its APPROVED edges, ordered by stage rank.
func (s *KuzuStore) ApprovedStageNames(_ context.Context, id string) ([]string, error) {
	rows, err := s.query(
		`MATCH (p:Project {id: $id})-[:APPROVED]->(st:Stage) RETURN st.name ORDER BY st.rank`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, &ReadError{Backend: "kuzu", Err: err}
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, toString(row[0]))
	}
	return names, nil
}

// Save upserts the Project node and rewrites its APPROVED edges inside one
// transaction.
func (s *KuzuStore) Save(_ context.Context, p blueprint.Project) error {
	if err := p.Validate(); err != nil {
		return &WriteError{Backend: "kuzu", ProjectID: p.ID, Err: err}
	}
	r := toRecord(p)
	body, err := json.Marshal(r)
	if err != nil {
		return &WriteError{Backend: "kuzu", ProjectID: p.ID, Err: fmt.Errorf("marshal: %w", err)}
	}

	err = s.inTx(func() error {
		if err := s.exec(`MERGE (p:Project {id: $id})
			ON CREATE SET p.title = $title, p.created_at = $created, p.updated_at = $updated, p.body = $body
			ON MATCH SET p.title = $title, p.created_at = $created, p.updated_at = $updated, p.body = $body`,
			map[string]any{
				"id":      r.ID,
				"title":   r.Title,
				"created": r.CreatedAt,
				"updated": r.UpdatedAt,
				"body":    string(body),
			}); err != nil {
			return err
		}
		if err := s.exec(`MATCH (p:Project {id: $id})-[a:APPROVED]->(:Stage) DELETE a`,
			map[string]any{"id": r.ID}); err != nil {
			return err
		}
		for _, stage := range r.ApprovedStages {
			if err := s.exec(`MATCH (p:Project {id: $id}), (st:Stage {name: $stage}) CREATE (p)-[:APPROVED]->(st)`,
				map[string]any{"id": r.ID, "stage": stage}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &WriteError{Backend: "kuzu", ProjectID: p.ID, Err: err}
	}
	return nil
}

// Delete removes the Project node and its edges.
func (s *KuzuStore) Delete(_ context.Context, id string) error {
	if err := s.exec(`MATCH (p:Project {id: $id}) DETACH DELETE p`, map[string]any{"id": id}); err != nil {
		return &WriteError{Backend: "kuzu", ProjectID: id, Err: err}
	}
	return nil
}

func (s *KuzuStore) inTx(fn func() error) error {
	if err := s.run("BEGIN TRANSACTION"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		s.run("ROLLBACK")
		return err
	}
	return s.run("COMMIT")
}

func (s *KuzuStore) run(cypher string) error {
	res, err := s.conn.Query(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: %s: %w", cypher, err)
	}
	res.Close()
	return nil
}

func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects each row as a []any in column
// order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
