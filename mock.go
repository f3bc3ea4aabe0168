package neoimport

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// NewMock creates a recording [neo4j.DriverWithContext] for tests and dry
// runs. It accepts every statement, records it, and answers with programmable
// failures, counters and skip counts. Constraint statements report a created
// constraint only the first time they are seen, as IF NOT EXISTS does.
func NewMock() *Mock {
	return &Mock{constraints: map[string]bool{}}
}

// RecordedStatement is a statement received by a [Mock].
type RecordedStatement struct {
	Session int
	Cypher  string
	Params  map[string]any
	// Managed is true when the statement ran inside ExecuteWrite/ExecuteRead.
	Managed bool
}

type (
	Mock struct {
		// Unimplemented driver methods panic through the nil interface.
		neo4j.DriverWithContext

		mu          sync.Mutex
		statements  []RecordedStatement
		failures    []mockRule[error]
		skipped     []mockRule[int64]
		counters    []mockRule[Counters]
		constraints map[string]bool
		sessions    int
		open        int
		closed      bool
		connectErr  error
		onStatement func(RecordedStatement)
	}
	mockRule[T any] struct {
		fragment string
		value    T
	}

	mockSession struct {
		neo4j.SessionWithContext
		mock *Mock
		id   int
	}
	mockManagedTransaction struct {
		neo4j.ManagedTransaction
		session *mockSession
	}
	mockResult struct {
		neo4j.ResultWithContext
		records []*neo4j.Record
		cursor  int
		started bool
		summary *mockSummary
		err     error
	}
	mockSummary struct {
		neo4j.ResultSummary
		counters mockCounters
	}
	mockCounters struct {
		neo4j.Counters
		c Counters
	}
)

var (
	_ neo4j.DriverWithContext  = (*Mock)(nil)
	_ neo4j.SessionWithContext = (*mockSession)(nil)
	_ neo4j.ManagedTransaction = (*mockManagedTransaction)(nil)
	_ neo4j.ResultWithContext  = (*mockResult)(nil)
	_ neo4j.ResultSummary      = (*mockSummary)(nil)
	_ neo4j.Counters           = mockCounters{}
)

// FailOn makes every statement containing fragment fail with err once its
// result is consumed.
func (m *Mock) FailOn(fragment string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, mockRule[error]{fragment, err})
}

// FailConnectivity makes VerifyConnectivity return err.
func (m *Mock) FailConnectivity(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SkipRows sets the count returned by skip-count statements containing
// fragment.
func (m *Mock) SkipRows(fragment string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = append(m.skipped, mockRule[int64]{fragment, n})
}

// SetCounters sets the summary counters of statements containing fragment.
func (m *Mock) SetCounters(fragment string, c Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, mockRule[Counters]{fragment, c})
}

// OnStatement registers fn to be called with every statement as it arrives.
func (m *Mock) OnStatement(fn func(RecordedStatement)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatement = fn
}

// Statements returns the statements received so far, in arrival order.
func (m *Mock) Statements() []RecordedStatement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedStatement, len(m.statements))
	copy(out, m.statements)
	return out
}

// Sessions returns how many sessions were opened.
func (m *Mock) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions
}

// OpenSessions returns how many sessions are not closed yet.
func (m *Mock) OpenSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Closed reports whether Close was called on the driver.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Clear forgets recorded statements and programmed answers.
func (m *Mock) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements = nil
	m.failures = nil
	m.skipped = nil
	m.counters = nil
	m.constraints = map[string]bool{}
	m.sessions = 0
	m.open = 0
}

func (m *Mock) NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	m.open++
	return &mockSession{mock: m, id: m.sessions}
}

func (m *Mock) VerifyConnectivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectErr
}

func (m *Mock) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func match[T any](rules []mockRule[T], cypher string) (T, bool) {
	for _, r := range rules {
		if strings.Contains(cypher, r.fragment) {
			return r.value, true
		}
	}
	var zero T
	return zero, false
}

func (m *Mock) record(stmt RecordedStatement) *mockResult {
	m.mu.Lock()
	m.statements = append(m.statements, stmt)
	hook := m.onStatement
	res := &mockResult{summary: &mockSummary{}}

	if err, ok := match(m.failures, stmt.Cypher); ok {
		res.err = err
	} else {
		c, _ := match(m.counters, stmt.Cypher)
		if strings.HasPrefix(stmt.Cypher, "CREATE CONSTRAINT") && !m.constraints[stmt.Cypher] {
			m.constraints[stmt.Cypher] = true
			c.ConstraintsAdded = 1
		}
		res.summary.counters = mockCounters{c: c}
		if strings.Contains(stmt.Cypher, "AS skipped") {
			n, _ := match(m.skipped, stmt.Cypher)
			res.records = []*neo4j.Record{{Keys: []string{"skipped"}, Values: []any{n}}}
		}
	}
	m.mu.Unlock()

	if hook != nil {
		hook(stmt)
	}
	return res
}

func (s *mockSession) LastBookmarks() neo4j.Bookmarks {
	return nil
}

func (s *mockSession) BeginTransaction(ctx context.Context, configurers ...func(*neo4j.TransactionConfig)) (neo4j.ExplicitTransaction, error) {
	panic(errors.New("not implemented"))
}

func (s *mockSession) ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error) {
	return work(&mockManagedTransaction{session: s})
}

func (s *mockSession) ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error) {
	return work(&mockManagedTransaction{session: s})
}

func (s *mockSession) Run(ctx context.Context, cypher string, params map[string]any, configurers ...func(*neo4j.TransactionConfig)) (neo4j.ResultWithContext, error) {
	return s.mock.record(RecordedStatement{Session: s.id, Cypher: cypher, Params: params}), nil
}

func (s *mockSession) Close(ctx context.Context) error {
	s.mock.mu.Lock()
	defer s.mock.mu.Unlock()
	s.mock.open--
	return nil
}

func (t *mockManagedTransaction) Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error) {
	return t.session.mock.record(RecordedStatement{Session: t.session.id, Cypher: cypher, Params: params, Managed: true}), nil
}

func (r *mockResult) Keys() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.records) == 0 {
		return nil, nil
	}
	return r.records[0].Keys, nil
}

func (r *mockResult) NextRecord(ctx context.Context, record **neo4j.Record) bool {
	if r.Next(ctx) {
		*record = r.Record()
		return true
	}
	return false
}

func (r *mockResult) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if !r.started {
		r.started = true
	} else {
		r.cursor++
	}
	return r.cursor < len(r.records)
}

func (r *mockResult) Err() error {
	return r.err
}

func (r *mockResult) Record() *neo4j.Record {
	if r.cursor < len(r.records) {
		return r.records[r.cursor]
	}
	return nil
}

func (r *mockResult) Collect(ctx context.Context) ([]*neo4j.Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

func (r *mockResult) Single(ctx context.Context) (*neo4j.Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.records) != 1 {
		return nil, errors.New("result contains no records or more than one record")
	}
	return r.records[0], nil
}

func (r *mockResult) Consume(ctx context.Context) (neo4j.ResultSummary, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.summary, nil
}

func (r *mockResult) IsOpen() bool {
	return false
}

func (s *mockSummary) Counters() neo4j.Counters {
	return s.counters
}

func (c mockCounters) NodesCreated() int         { return c.c.NodesCreated }
func (c mockCounters) RelationshipsCreated() int { return c.c.RelationshipsCreated }
func (c mockCounters) PropertiesSet() int        { return c.c.PropertiesSet }
func (c mockCounters) LabelsAdded() int          { return c.c.LabelsAdded }
func (c mockCounters) ConstraintsAdded() int     { return c.c.ConstraintsAdded }
func (c mockCounters) ContainsUpdates() bool {
	return c.c != Counters{}
}
