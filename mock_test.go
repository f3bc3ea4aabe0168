package neoimport

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock(t *testing.T) {
	ctx := context.Background()

	t.Run("records statements per session", func(t *testing.T) {
		m := NewMock()
		a := m.NewSession(ctx, neo4j.SessionConfig{})
		b := m.NewSession(ctx, neo4j.SessionConfig{})
		_, err := a.Run(ctx, "RETURN 1", nil)
		require.NoError(t, err)
		_, err = b.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, "RETURN 2", map[string]any{"x": 1})
		})
		require.NoError(t, err)

		assert.Equal(t, []RecordedStatement{
			{Session: 1, Cypher: "RETURN 1"},
			{Session: 2, Cypher: "RETURN 2", Params: map[string]any{"x": 1}, Managed: true},
		}, m.Statements())
		assert.Equal(t, 2, m.OpenSessions())
		require.NoError(t, a.Close(ctx))
		require.NoError(t, b.Close(ctx))
		assert.Zero(t, m.OpenSessions())
	})

	t.Run("failures surface on consume", func(t *testing.T) {
		m := NewMock()
		boom := errors.New("boom")
		m.FailOn("MERGE", boom)
		sess := m.NewSession(ctx, neo4j.SessionConfig{})

		res, err := sess.Run(ctx, "MERGE (n)", nil)
		require.NoError(t, err)
		_, err = res.Consume(ctx)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, res.Err(), boom)

		res, err = sess.Run(ctx, "MATCH (n)", nil)
		require.NoError(t, err)
		_, err = res.Consume(ctx)
		assert.NoError(t, err)
	})

	t.Run("skip counts", func(t *testing.T) {
		m := NewMock()
		m.SkipRows("CIF", 4)
		sess := m.NewSession(ctx, neo4j.SessionConfig{})

		res, err := sess.Run(ctx, "WHERE row.CIF IS NULL RETURN count(row) AS skipped", nil)
		require.NoError(t, err)
		rec, err := res.Single(ctx)
		require.NoError(t, err)
		v, ok := rec.Get("skipped")
		require.True(t, ok)
		assert.Equal(t, int64(4), v)

		res, err = sess.Run(ctx, "RETURN count(row) AS skipped", nil)
		require.NoError(t, err)
		rec, err = res.Single(ctx)
		require.NoError(t, err)
		v, _ = rec.Get("skipped")
		assert.Equal(t, int64(0), v)
	})

	t.Run("constraints are created once", func(t *testing.T) {
		m := NewMock()
		sess := m.NewSession(ctx, neo4j.SessionConfig{})
		added := func() int {
			res, err := sess.Run(ctx, "CREATE CONSTRAINT x IF NOT EXISTS", nil)
			require.NoError(t, err)
			summary, err := res.Consume(ctx)
			require.NoError(t, err)
			return summary.Counters().ConstraintsAdded()
		}
		assert.Equal(t, 1, added())
		assert.Equal(t, 0, added())

		m.Clear()
		assert.Equal(t, 1, added())
	})

	t.Run("counters", func(t *testing.T) {
		m := NewMock()
		m.SetCounters("HAS_ACCOUNT", Counters{RelationshipsCreated: 7})
		sess := m.NewSession(ctx, neo4j.SessionConfig{})
		res, err := sess.Run(ctx, "MERGE (a)-[:HAS_ACCOUNT]->(b)", nil)
		require.NoError(t, err)
		summary, err := res.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, summary.Counters().RelationshipsCreated())
		assert.Equal(t, 0, summary.Counters().NodesCreated())
	})

	t.Run("iterates records", func(t *testing.T) {
		m := NewMock()
		sess := m.NewSession(ctx, neo4j.SessionConfig{})
		res, err := sess.Run(ctx, "RETURN 0 AS skipped", nil)
		require.NoError(t, err)

		var rec *neo4j.Record
		require.True(t, res.NextRecord(ctx, &rec))
		assert.Equal(t, []string{"skipped"}, rec.Keys)
		assert.False(t, res.Next(ctx))
	})

	t.Run("statement hook", func(t *testing.T) {
		m := NewMock()
		var seen []string
		m.OnStatement(func(s RecordedStatement) { seen = append(seen, s.Cypher) })
		sess := m.NewSession(ctx, neo4j.SessionConfig{})
		_, _ = sess.Run(ctx, "RETURN 1", nil)
		assert.Equal(t, []string{"RETURN 1"}, seen)
	})

	t.Run("connectivity", func(t *testing.T) {
		m := NewMock()
		assert.NoError(t, m.VerifyConnectivity(ctx))
		m.FailConnectivity(errors.New("refused"))
		assert.Error(t, m.VerifyConnectivity(ctx))
	})
}
