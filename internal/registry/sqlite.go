package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hollis-b/affectlens/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// SQLite is a Registry backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens a SQLite registry at the given path. Applies
// required pragmas and the schema automatically; safe to call multiple
// times on the same path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case version > currentSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	return nil
}

// prototypeDoc is the persisted source form of a prototype.
type prototypeDoc struct {
	Weights map[string]float64 `json:"weights"`
	Gates   []map[string]any   `json:"gates,omitempty"`
}

// expressionDoc is the persisted source form of an expression.
type expressionDoc struct {
	Prerequisites []map[string]any `json:"prerequisites"`
}

// Prototype returns the prototype with the given id.
func (s *SQLite) Prototype(ctx context.Context, id string) (model.Prototype, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT definition FROM prototypes WHERE id = ?", id).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Prototype{}, &NotFoundError{Kind: KindPrototype, ID: id}
	case err != nil:
		return model.Prototype{}, fmt.Errorf("read prototype: %w", err)
	}
	return decodePrototype(id, raw)
}

// Expression returns the expression with the given id.
func (s *SQLite) Expression(ctx context.Context, id string) (model.Expression, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT definition FROM expressions WHERE id = ?", id).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Expression{}, &NotFoundError{Kind: KindExpression, ID: id}
	case err != nil:
		return model.Expression{}, fmt.Errorf("read expression: %w", err)
	}
	return decodeExpression(id, raw)
}

// Prototypes returns all prototypes ordered by id.
func (s *SQLite) Prototypes(ctx context.Context) ([]model.Prototype, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, definition FROM prototypes ORDER BY id COLLATE BINARY ASC")
	if err != nil {
		return nil, fmt.Errorf("query prototypes: %w", err)
	}
	defer rows.Close()

	out := []model.Prototype{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan prototype: %w", err)
		}
		p, err := decodePrototype(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prototypes: %w", err)
	}
	return out, nil
}

// Expressions returns all expressions ordered by id.
func (s *SQLite) Expressions(ctx context.Context) ([]model.Expression, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, definition FROM expressions ORDER BY id COLLATE BINARY ASC")
	if err != nil {
		return nil, fmt.Errorf("query expressions: %w", err)
	}
	defer rows.Close()

	out := []model.Expression{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan expression: %w", err)
		}
		e, err := decodeExpression(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expressions: %w", err)
	}
	return out, nil
}

// PutPrototype stores a prototype, replacing any with the same id.
func (s *SQLite) PutPrototype(ctx context.Context, p model.Prototype) error {
	if p.ID == "" {
		return fmt.Errorf("put prototype: missing id")
	}
	doc := prototypeDoc{Weights: p.Weights}
	for _, g := range p.Gates {
		doc.Gates = append(doc.Gates, g.Raw)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put prototype: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prototypes (id, definition) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET definition = excluded.definition
	`, p.ID, string(raw))
	if err != nil {
		return fmt.Errorf("put prototype: %w", err)
	}
	return nil
}

// PutExpression stores an expression, replacing any with the same id.
// Compiled prerequisite logic is serialized back to its source tree form.
func (s *SQLite) PutExpression(ctx context.Context, e model.Expression) error {
	if e.ID == "" {
		return fmt.Errorf("put expression: missing id")
	}
	doc := expressionDoc{}
	for _, p := range e.Prerequisites {
		doc.Prerequisites = append(doc.Prerequisites, model.EncodeLogic(p.Logic))
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put expression: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expressions (id, definition) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET definition = excluded.definition
	`, e.ID, string(raw))
	if err != nil {
		return fmt.Errorf("put expression: %w", err)
	}
	return nil
}

func decodePrototype(id, raw string) (model.Prototype, error) {
	var doc prototypeDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return model.Prototype{}, fmt.Errorf("decode prototype %q: %w", id, err)
	}
	p := model.Prototype{ID: id, Weights: doc.Weights}
	for _, g := range doc.Gates {
		p.Gates = append(p.Gates, model.GateCondition{Raw: g})
	}
	return p, nil
}

func decodeExpression(id, raw string) (model.Expression, error) {
	var doc expressionDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return model.Expression{}, fmt.Errorf("decode expression %q: %w", id, err)
	}
	e := model.Expression{ID: id}
	for i, node := range doc.Prerequisites {
		logic, err := model.ParseLogic(node)
		if err != nil {
			return model.Expression{}, fmt.Errorf("decode expression %q: prerequisites[%d]: %w", id, i, err)
		}
		e.Prerequisites = append(e.Prerequisites, model.Prerequisite{Logic: logic})
	}
	return e, nil
}

// Load stores all given definitions into dst. Used to seed a registry
// from compiled definition files.
func Load(ctx context.Context, dst Registry, prototypes []model.Prototype, expressions []model.Expression) error {
	for _, p := range prototypes {
		if err := dst.PutPrototype(ctx, p); err != nil {
			return err
		}
	}
	for _, e := range expressions {
		if err := dst.PutExpression(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
