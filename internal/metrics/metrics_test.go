package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/neoimport"
)

func TestObserveOperation(t *testing.T) {
	r := NewRegistry()

	r.ObserveOperation(neoimport.OpResult{
		Name:     "customer",
		Phase:    neoimport.NodePhase,
		File:     "customers.csv",
		Counters: neoimport.Counters{NodesCreated: 10, PropertiesSet: 90},
		Skipped:  2,
		Duration: time.Second,
	})
	r.ObserveOperation(neoimport.OpResult{
		Name:  "has_account",
		Phase: neoimport.RelationshipPhase,
		File:  "customers.csv",
		Err:   errors.New("boom"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.OperationsTotal.WithLabelValues("nodes", "customer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OperationsTotal.WithLabelValues("relationships", "has_account", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RowsSkippedTotal.WithLabelValues("customers.csv", "customer")))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.NodesCreated.WithLabelValues("customer")))
	assert.Equal(t, 90.0, testutil.ToFloat64(r.PropertiesSet.WithLabelValues("customer")))
	assert.Equal(t, 0, testutil.CollectAndCount(r.RelationshipsCreated), "failed operations record no counters")
}

func TestObserveReport(t *testing.T) {
	r := NewRegistry()
	finished := time.Unix(1_700_000_000, 0)

	r.ObserveReport(&neoimport.Report{
		Finished:      finished,
		Nodes:         &neoimport.PhaseResult{Phase: neoimport.NodePhase},
		Relationships: &neoimport.PhaseResult{Phase: neoimport.RelationshipPhase},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LastRunSuccess))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.LastRunTimestamp))

	r.ObserveReport(&neoimport.Report{Fatal: "connect", Finished: finished})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.LastRunSuccess))

	t.Run("selected phases only", func(t *testing.T) {
		r.ObserveReport(&neoimport.Report{
			Constraints: []neoimport.ConstraintResult{{Name: "imp_uniq_Card_CardNumber"}},
			Finished:    finished,
		})
		assert.Equal(t, 1.0, testutil.ToFloat64(r.LastRunSuccess))
	})

	t.Run("failed operation", func(t *testing.T) {
		r.ObserveReport(&neoimport.Report{
			Nodes:         &neoimport.PhaseResult{Ops: []neoimport.OpResult{{Name: "card", Err: errors.New("x")}}},
			Relationships: &neoimport.PhaseResult{},
			Finished:      finished,
		})
		assert.Equal(t, 0.0, testutil.ToFloat64(r.LastRunSuccess))
	})
}

func TestObserveCancelledOperation(t *testing.T) {
	r := NewRegistry()
	r.ObserveOperation(neoimport.OpResult{
		Name:      "merchant",
		Phase:     neoimport.NodePhase,
		Err:       errors.New("context canceled"),
		Cancelled: true,
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OperationsTotal.WithLabelValues("nodes", "merchant", "cancelled")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.OperationsTotal), "not also counted as failed")
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.ObserveOperation(neoimport.OpResult{Name: "card", Phase: neoimport.NodePhase, File: "purchases.csv"})

	path := filepath.Join(t.TempDir(), "neoimport.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `neoimport_operations_total{operation="card",phase="nodes",status="ok"} 1`)
}
