package topology

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type mockRunCall struct {
	cypher string
	params map[string]any
}

// mockSession implements sessionRunner for testing.
type mockSession struct {
	calls   []mockRunCall
	runFunc func(cypher string, params map[string]any) (resultIterator, error)
	closed  bool
}

func (m *mockSession) Run(_ context.Context, cypher string, params map[string]any) (resultIterator, error) {
	m.calls = append(m.calls, mockRunCall{cypher: cypher, params: params})
	if m.runFunc != nil {
		return m.runFunc(cypher, params)
	}
	return &mockResult{}, nil
}

func (m *mockSession) Close(_ context.Context) error {
	m.closed = true
	return nil
}

func (m *mockSession) ran(fragment string) bool {
	for _, c := range m.calls {
		if strings.Contains(c.cypher, fragment) {
			return true
		}
	}
	return false
}

// mockResult implements resultIterator for testing.
type mockResult struct {
	records []*neo4j.Record
	index   int
	err     error
}

func (m *mockResult) Next(_ context.Context) bool {
	if m.index < len(m.records) {
		m.index++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record {
	if m.index > 0 && m.index <= len(m.records) {
		return m.records[m.index-1]
	}
	return nil
}

func (m *mockResult) Err() error {
	return m.err
}

// idRecords returns a result with one "id" column per given id.
func idRecords(ids ...string) *mockResult {
	r := &mockResult{}
	for _, id := range ids {
		r.records = append(r.records, &neo4j.Record{Keys: []string{"id"}, Values: []any{id}})
	}
	return r
}

func mockSessionFactory(session *mockSession) sessionFactory {
	return func(_ context.Context, _ neo4j.AccessMode) sessionRunner {
		return session
	}
}
