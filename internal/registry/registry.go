package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hollis-b/affectlens/internal/model"
)

// Kind names a definition family for error reporting.
type Kind string

const (
	KindPrototype  Kind = "prototype"
	KindExpression Kind = "expression"
)

// NotFoundError reports a lookup miss.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Registry provides definition lookup for the diagnostic pipelines.
//
// List methods return definitions ordered by id so diagnostic runs over a
// whole registry are deterministic.
type Registry interface {
	Prototype(ctx context.Context, id string) (model.Prototype, error)
	Expression(ctx context.Context, id string) (model.Expression, error)
	Prototypes(ctx context.Context) ([]model.Prototype, error)
	Expressions(ctx context.Context) ([]model.Expression, error)

	PutPrototype(ctx context.Context, p model.Prototype) error
	PutExpression(ctx context.Context, e model.Expression) error
}

// Memory is an in-memory Registry. Safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	prototypes  map[string]model.Prototype
	expressions map[string]model.Expression
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		prototypes:  map[string]model.Prototype{},
		expressions: map[string]model.Expression{},
	}
}

// Prototype returns the prototype with the given id.
func (m *Memory) Prototype(_ context.Context, id string) (model.Prototype, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prototypes[id]
	if !ok {
		return model.Prototype{}, &NotFoundError{Kind: KindPrototype, ID: id}
	}
	return p, nil
}

// Expression returns the expression with the given id.
func (m *Memory) Expression(_ context.Context, id string) (model.Expression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expressions[id]
	if !ok {
		return model.Expression{}, &NotFoundError{Kind: KindExpression, ID: id}
	}
	return e, nil
}

// Prototypes returns all prototypes ordered by id.
func (m *Memory) Prototypes(_ context.Context) ([]model.Prototype, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Prototype, 0, len(m.prototypes))
	for _, p := range m.prototypes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Expressions returns all expressions ordered by id.
func (m *Memory) Expressions(_ context.Context) ([]model.Expression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Expression, 0, len(m.expressions))
	for _, e := range m.expressions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutPrototype stores a prototype, replacing any with the same id.
func (m *Memory) PutPrototype(_ context.Context, p model.Prototype) error {
	if p.ID == "" {
		return fmt.Errorf("put prototype: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prototypes[p.ID] = p
	return nil
}

// PutExpression stores an expression, replacing any with the same id.
func (m *Memory) PutExpression(_ context.Context, e model.Expression) error {
	if e.ID == "" {
		return fmt.Errorf("put expression: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expressions[e.ID] = e
	return nil
}
