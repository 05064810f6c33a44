package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu          sync.Mutex
	obligations map[matcher.Kind][]*matcher.Obligation // insertion order
	matchLog    []matcher.MatchLogEntry
	nextID      map[matcher.Kind]int64
	nextLogID   int64

	// Hooks for test assertions
	FindCalls      []matcher.LookupQuery
	SettleCalls    int
	LogMatchCalled bool

	// Error injection for testing error paths
	FindErr     error
	SettleErr   error
	GetErr      error
	CreateErr   error
	ListErr     error
	LogMatchErr error
	PingErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		obligations: make(map[matcher.Kind][]*matcher.Obligation),
		nextID:      map[matcher.Kind]int64{matcher.KindPayable: 1, matcher.KindReceivable: 1},
		nextLogID:   1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// Ping returns PingErr
func (m *MockRepository) Ping(_ context.Context) error {
	return m.PingErr
}

// AddObligation is a test helper that stores an obligation and returns its ID
func (m *MockRepository) AddObligation(o matcher.Obligation) int64 {
	if err := m.CreateObligation(context.Background(), &o); err != nil {
		panic(err)
	}
	return o.ID
}

// CreateObligation stores a copy of o and sets its ID
func (m *MockRepository) CreateObligation(_ context.Context, o *matcher.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: %q", matcher.ErrInvalidKind, o.Kind)
	}
	if o.Status == "" {
		o.Status = matcher.StatusPending
	}
	if o.ID == 0 {
		o.ID = m.nextID[o.Kind]
	}
	if o.ID >= m.nextID[o.Kind] {
		m.nextID[o.Kind] = o.ID + 1
	}

	copied := *o
	m.obligations[o.Kind] = append(m.obligations[o.Kind], &copied)
	return nil
}

// FindPendingObligations filters in-memory obligations like the SQL stores
func (m *MockRepository) FindPendingObligations(_ context.Context, q matcher.LookupQuery) ([]matcher.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindCalls = append(m.FindCalls, q)
	if m.FindErr != nil {
		return nil, m.FindErr
	}

	var result []matcher.Obligation
	for _, o := range m.obligations[q.Kind] {
		if q.Limit > 0 && len(result) >= q.Limit {
			break
		}
		if o.Status != matcher.StatusPending || o.DueDate == nil {
			continue
		}
		if !o.Amount.Sub(q.Amount).Abs().LessThan(q.Tolerance) {
			continue
		}
		if o.DueDate.Before(q.From) || o.DueDate.After(q.To) {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

// SettleObligation settles a pending in-memory obligation
func (m *MockRepository) SettleObligation(_ context.Context, kind matcher.Kind, id int64, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SettleCalls++
	if m.SettleErr != nil {
		return m.SettleErr
	}

	o := m.find(kind, id)
	if o == nil {
		return matcher.ErrObligationNotFound
	}
	if o.Status != matcher.StatusPending {
		return fmt.Errorf("%w: status is %s", matcher.ErrConflict, o.Status)
	}

	o.Status = kind.SettledStatus()
	settled := date
	o.SettlementDate = &settled
	return nil
}

// GetObligation returns a copy of the stored obligation
func (m *MockRepository) GetObligation(_ context.Context, kind matcher.Kind, id int64) (*matcher.Obligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", matcher.ErrInvalidKind, kind)
	}

	o := m.find(kind, id)
	if o == nil {
		return nil, matcher.ErrObligationNotFound
	}
	copied := *o
	return &copied, nil
}

// ListObligations returns obligations ordered by due date, kind and ID
func (m *MockRepository) ListObligations(_ context.Context, filters ObligationFilters) (*ObligationListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	filters = normalizeFilters(filters)

	var all []matcher.Obligation
	for _, kind := range matcher.Kinds {
		if filters.Kind != "" && filters.Kind != kind {
			continue
		}
		for _, o := range m.obligations[kind] {
			if filters.Status != "" && filters.Status != o.Status {
				continue
			}
			all = append(all, *o)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if (a.DueDate == nil) != (b.DueDate == nil) {
			return b.DueDate == nil
		}
		if a.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})

	result := &ObligationListResult{
		Obligations: []matcher.Obligation{},
		TotalCount:  len(all),
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}
	if filters.Offset < len(all) {
		end := min(filters.Offset+filters.Limit, len(all))
		result.Obligations = append(result.Obligations, all[filters.Offset:end]...)
	}
	return result, nil
}

// LogMatch appends to the in-memory match log
func (m *MockRepository) LogMatch(_ context.Context, entry *matcher.MatchLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LogMatchCalled = true
	if m.LogMatchErr != nil {
		return m.LogMatchErr
	}
	entry.ID = m.nextLogID
	m.nextLogID++
	m.matchLog = append(m.matchLog, *entry)
	return nil
}

// ListMatchLog returns logged matches, newest first
func (m *MockRepository) ListMatchLog(_ context.Context, limit int) ([]matcher.MatchLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = DefaultMatchLogLimit
	}

	entries := []matcher.MatchLogEntry{}
	for i := len(m.matchLog) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, m.matchLog[i])
	}
	return entries, nil
}

func (m *MockRepository) find(kind matcher.Kind, id int64) *matcher.Obligation {
	for _, o := range m.obligations[kind] {
		if o.ID == id {
			return o
		}
	}
	return nil
}
