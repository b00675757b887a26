package topology

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// resultIterator is the part of neo4j.ResultWithContext the engine reads.
type resultIterator interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// sessionRunner is the part of neo4j.SessionWithContext the engine and sync use.
type sessionRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (resultIterator, error)
	Close(ctx context.Context) error
}

// sessionFactory opens a session in the given access mode.
type sessionFactory func(ctx context.Context, mode neo4j.AccessMode) sessionRunner

type boltSession struct {
	session neo4j.SessionWithContext
}

func (s *boltSession) Run(ctx context.Context, cypher string, params map[string]any) (resultIterator, error) {
	return s.session.Run(ctx, cypher, params)
}

func (s *boltSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

func newBoltSessionFactory(driver neo4j.DriverWithContext) sessionFactory {
	return func(ctx context.Context, mode neo4j.AccessMode) sessionRunner {
		return &boltSession{session: driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})}
	}
}
