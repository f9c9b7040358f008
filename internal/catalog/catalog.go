// Package catalog stores SQL templates keyed by code, along with the
// declared metadata (consolidable, pagination strategy, consolidation
// type, estimated rows) the rest of the engine consults to avoid
// re-analyzing a query on every request. Templates are versioned by a
// monotonic counter and soft-deleted only, per spec.md §3.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/1auti/dynamic-querys-sub000/internal/errorsx"
)

// ConsolidationType enumerates how a template's result set should be
// merged across shards.
type ConsolidationType string

const (
	ConsolidationAggregation       ConsolidationType = "AGGREGATION"
	ConsolidationAggregationStream ConsolidationType = "AGGREGATION_STREAMING"
	ConsolidationHighVolume        ConsolidationType = "AGGREGATION_HIGH_VOLUME"
	ConsolidationRaw               ConsolidationType = "RAW"
	ConsolidationDeduplication     ConsolidationType = "DEDUPLICATION"
	ConsolidationHierarchical      ConsolidationType = "HIERARCHICAL"
	ConsolidationCombined          ConsolidationType = "COMBINED"
)

// PaginationStrategy enumerates the pagination family chosen for a
// template, see the Pagination Strategy Analyzer (C4).
type PaginationStrategy string

const (
	PaginationKeysetWithID       PaginationStrategy = "KEYSET_WITH_ID"
	PaginationCompositeKeyset    PaginationStrategy = "COMPOSITE_KEYSET"
	PaginationConsolidationKeyset PaginationStrategy = "CONSOLIDATION_KEYSET"
	PaginationOffset             PaginationStrategy = "OFFSET"
	PaginationLimitOnly          PaginationStrategy = "LIMIT_ONLY"
	PaginationNone               PaginationStrategy = "NONE"
)

// Template is a catalog entry: a named SQL template plus the metadata the
// rewriter and batch processor need to drive it without re-parsing the
// SQL on every request.
type Template struct {
	Code    string
	Name    string
	SQLText string
	Category string

	Consolidable       bool
	ConsolidationType  ConsolidationType // empty means "not yet analyzed"
	PaginationStrategy PaginationStrategy
	EstimatedRows      *int

	GroupingFields []string
	NumericFields  []string

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	UseCount int64
}

// IsDeleted reports whether this template has been soft-deleted.
func (t *Template) IsDeleted() bool { return t.DeletedAt != nil }

// Catalog is the read-mostly store of query templates. Implementations
// must be safe for concurrent use. The in-memory implementation below
// answers FindByCode with a plain lookup (a miss is a
// QueryNotFoundError, nothing is computed); the Analyzer verdict for a
// code is written back separately through Update by
// internal/wiring's RequestBuilder on the first query of that code.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
	Save(ctx context.Context, t *Template) error
	Update(ctx context.Context, t *Template) error
	SoftDelete(ctx context.Context, code string) error
	MostUsed(ctx context.Context, n int) ([]*Template, error)
	PendingAnalysis(ctx context.Context) ([]*Template, error)
}

// InMemory is a Catalog backed by a guarded map, suitable for tests and
// for embedding behind a real persistence layer (out of scope per
// spec.md §1). It mirrors the teacher's Resolvers.mu pattern: an
// unexported mu struct bundling the lock with the guarded state.
type InMemory struct {
	mu struct {
		sync.RWMutex
		byCode map[string]*Template
	}
}

var _ Catalog = (*InMemory)(nil)

// NewInMemory returns an empty in-memory catalog.
func NewInMemory() *InMemory {
	c := &InMemory{}
	c.mu.byCode = make(map[string]*Template)
	return c
}

// FindByCode returns the template for code, or a *errorsx.QueryNotFoundError
// if unknown or soft-deleted.
func (c *InMemory) FindByCode(_ context.Context, code string) (*Template, error) {
	c.mu.RLock()
	t, ok := c.mu.byCode[code]
	c.mu.RUnlock()
	if !ok || t.IsDeleted() {
		return nil, &errorsx.QueryNotFoundError{Code: code}
	}

	c.mu.Lock()
	t.UseCount++
	c.mu.Unlock()

	cp := *t
	return &cp, nil
}

// List returns every non-deleted template.
func (c *InMemory) List(_ context.Context) ([]*Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ret := make([]*Template, 0, len(c.mu.byCode))
	for _, t := range c.mu.byCode {
		if !t.IsDeleted() {
			cp := *t
			ret = append(ret, &cp)
		}
	}
	return ret, nil
}

// Save inserts a brand-new template at version 1. It returns an error if
// the code already exists and is not soft-deleted.
func (c *InMemory) Save(_ context.Context, t *Template) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.mu.byCode[t.Code]; ok && !existing.IsDeleted() {
		return errors.Errorf("template %s already exists", t.Code)
	}

	cp := *t
	cp.Version = 1
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	cp.DeletedAt = nil
	c.mu.byCode[t.Code] = &cp
	return nil
}

// Update bumps the monotonic version counter and stores t, per spec.md
// §3 ("Versioned by monotonic counter").
func (c *InMemory) Update(_ context.Context, t *Template) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.mu.byCode[t.Code]
	if !ok {
		return &errorsx.QueryNotFoundError{Code: t.Code}
	}

	cp := *t
	cp.Version = existing.Version + 1
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	c.mu.byCode[t.Code] = &cp
	return nil
}

// SoftDelete marks a template deleted without removing it, per spec.md
// §3 ("Soft-deleted only").
func (c *InMemory) SoftDelete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.mu.byCode[code]
	if !ok {
		return &errorsx.QueryNotFoundError{Code: code}
	}
	now := time.Now()
	t.DeletedAt = &now
	return nil
}

// MostUsed returns up to n non-deleted templates sorted by descending
// UseCount.
func (c *InMemory) MostUsed(ctx context.Context, n int) ([]*Template, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	sortByUseCountDesc(all)
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// PendingAnalysis returns templates whose ConsolidationType has not yet
// been set by the Query Analyzer.
func (c *InMemory) PendingAnalysis(ctx context.Context) ([]*Template, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	ret := all[:0]
	for _, t := range all {
		if t.ConsolidationType == "" {
			ret = append(ret, t)
		}
	}
	return ret, nil
}

func sortByUseCountDesc(ts []*Template) {
	// Insertion sort; catalogs top out at a few hundred codes.
	for i := 1; i < len(ts); i++ {
		j := i
		for j > 0 && ts[j-1].UseCount < ts[j].UseCount {
			ts[j-1], ts[j] = ts[j], ts[j-1]
			j--
		}
	}
}
