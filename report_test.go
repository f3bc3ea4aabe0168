package neoimport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseResult(t *testing.T) {
	boom := errors.New("boom")
	p := &PhaseResult{Phase: NodePhase, Ops: []OpResult{
		{Name: "customer", Counters: Counters{NodesCreated: 3, PropertiesSet: 27, LabelsAdded: 3}},
		{Name: "account", Err: boom},
		{Name: "card", Counters: Counters{NodesCreated: 2, PropertiesSet: 2, LabelsAdded: 2}},
	}}

	failed := p.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "account", failed[0].Name)
	assert.ErrorIs(t, p.Err(), boom)
	assert.Equal(t, Counters{NodesCreated: 5, PropertiesSet: 29, LabelsAdded: 5}, p.Totals())

	t.Run("nil", func(t *testing.T) {
		var p *PhaseResult
		assert.Nil(t, p.Failed())
		assert.NoError(t, p.Err())
		assert.Equal(t, Counters{}, p.Totals())
	})
}

func TestReport(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		r := newReport()
		assert.NotEmpty(t, r.RunID)
		assert.False(t, r.Complete())

		r.Nodes = &PhaseResult{Phase: NodePhase}
		r.Relationships = &PhaseResult{Phase: RelationshipPhase}
		assert.True(t, r.Complete())
		assert.False(t, r.Failed())

		r.Fatal = "connect"
		assert.False(t, r.Complete())
		assert.True(t, r.Failed())
	})

	t.Run("failed operation", func(t *testing.T) {
		r := &Report{
			Nodes:         &PhaseResult{},
			Relationships: &PhaseResult{Ops: []OpResult{{Name: "send_to", Err: errors.New("x")}}},
		}
		assert.True(t, r.Complete())
		assert.True(t, r.Failed())
	})

	t.Run("skipped", func(t *testing.T) {
		r := &Report{Nodes: &PhaseResult{Ops: []OpResult{
			{Name: "customer", File: "customers.csv", Skipped: 2},
			{Name: "account", File: "customers.csv"},
			{Name: "transaction_from_purchases", File: "purchases.csv", Skipped: 1},
		}}}
		assert.Equal(t, map[string]int64{
			"customers.csv:customer":                   2,
			"purchases.csv:transaction_from_purchases": 1,
		}, r.Skipped())
	})
}

func TestReportWriteJSON(t *testing.T) {
	r := &Report{
		RunID: "01HZY",
		Constraints: []ConstraintResult{
			{Name: "imp_uniq_Card_CardNumber", Label: "Card", Key: "CardNumber", Created: true},
		},
		Nodes: &PhaseResult{Phase: NodePhase, Ops: []OpResult{
			{Name: "card", Phase: NodePhase, File: "purchases.csv", Err: errors.New("fetch failed")},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var decoded struct {
		RunID       string             `json:"run_id"`
		Constraints []ConstraintResult `json:"constraints"`
		Nodes       struct {
			Phase string `json:"phase"`
			Ops   []struct {
				Name  string `json:"name"`
				File  string `json:"file"`
				Error string `json:"error"`
			} `json:"operations"`
		} `json:"nodes"`
		Relationships any `json:"relationships"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "01HZY", decoded.RunID)
	assert.Equal(t, r.Constraints, decoded.Constraints)
	assert.Equal(t, "nodes", decoded.Nodes.Phase)
	require.Len(t, decoded.Nodes.Ops, 1)
	assert.Equal(t, "fetch failed", decoded.Nodes.Ops[0].Error)
	assert.Equal(t, "purchases.csv", decoded.Nodes.Ops[0].File)
	assert.Nil(t, decoded.Relationships)
	assert.NotContains(t, buf.String(), `"fatal"`)
}
