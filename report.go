package neoimport

import (
	"errors"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

// Counters are the write statistics the server reported for an operation.
type Counters struct {
	NodesCreated         int `json:"nodes_created"`
	RelationshipsCreated int `json:"relationships_created"`
	PropertiesSet        int `json:"properties_set"`
	LabelsAdded          int `json:"labels_added"`
	ConstraintsAdded     int `json:"constraints_added,omitempty"`
}

// OpResult is the outcome of one bulk operation.
type OpResult struct {
	Name     string        `json:"name"`
	Phase    Phase         `json:"phase"`
	File     string        `json:"file"`
	Counters Counters      `json:"counters"`
	Skipped  int64         `json:"skipped_rows"`
	Duration time.Duration `json:"duration_ns"`

	// Cancelled is set when the operation failed after its context was
	// cancelled, e.g. by a fail-fast sibling or a timeout.
	Cancelled bool  `json:"cancelled,omitempty"`
	Err       error `json:"-"`
}

// Failed reports whether the operation failed.
func (r OpResult) Failed() bool { return r.Err != nil }

func (r OpResult) MarshalJSON() ([]byte, error) {
	type alias OpResult
	var msg string
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias(r), msg})
}

// PhaseResult collects the operations run by one load phase.
type PhaseResult struct {
	Phase Phase      `json:"phase"`
	Ops   []OpResult `json:"operations"`
}

// Failed returns the operations that failed.
func (p *PhaseResult) Failed() []OpResult {
	if p == nil {
		return nil
	}
	var failed []OpResult
	for _, op := range p.Ops {
		if op.Failed() {
			failed = append(failed, op)
		}
	}
	return failed
}

// Err joins the errors of every failed operation, or returns nil.
func (p *PhaseResult) Err() error {
	var errs []error
	for _, op := range p.Failed() {
		errs = append(errs, op.Err)
	}
	return errors.Join(errs...)
}

// Totals sums the counters of every operation.
func (p *PhaseResult) Totals() Counters {
	var c Counters
	if p == nil {
		return c
	}
	for _, op := range p.Ops {
		c.NodesCreated += op.Counters.NodesCreated
		c.RelationshipsCreated += op.Counters.RelationshipsCreated
		c.PropertiesSet += op.Counters.PropertiesSet
		c.LabelsAdded += op.Counters.LabelsAdded
		c.ConstraintsAdded += op.Counters.ConstraintsAdded
	}
	return c
}

// ConstraintResult is the outcome of one constraint statement.
type ConstraintResult struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Key     string `json:"key"`
	Created bool   `json:"created"`
}

// Report summarises a full run.
type Report struct {
	RunID         string             `json:"run_id"`
	Started       time.Time          `json:"started"`
	Finished      time.Time          `json:"finished"`
	Constraints   []ConstraintResult `json:"constraints"`
	Nodes         *PhaseResult       `json:"nodes,omitempty"`
	Relationships *PhaseResult       `json:"relationships,omitempty"`
	Fatal         string             `json:"fatal,omitempty"`
}

func newReport() *Report {
	return &Report{
		RunID:   ulid.Make().String(),
		Started: time.Now(),
	}
}

// Failed reports whether any operation failed or the run aborted.
func (r *Report) Failed() bool {
	return r.Fatal != "" || len(r.Nodes.Failed()) > 0 || len(r.Relationships.Failed()) > 0
}

// Complete reports whether constraints and both load phases ran.
func (r *Report) Complete() bool {
	return r.Fatal == "" && r.Nodes != nil && r.Relationships != nil
}

// Skipped returns the skipped row count per operation, keyed by
// "<file>:<operation>".
func (r *Report) Skipped() map[string]int64 {
	out := map[string]int64{}
	for _, p := range []*PhaseResult{r.Nodes, r.Relationships} {
		if p == nil {
			continue
		}
		for _, op := range p.Ops {
			if op.Skipped > 0 {
				out[op.File+":"+op.Name] += op.Skipped
			}
		}
	}
	return out
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
