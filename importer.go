// Package neoimport loads the customers, transfers and purchases CSV dataset
// into Neo4j with server-side LOAD CSV statements: uniqueness constraints
// first, then nodes, then the relationships between them.
package neoimport

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

// Importer loads the CSV dataset into a Neo4j database in two phases: nodes,
// then relationships. An Importer is not safe for concurrent use.
type Importer struct {
	db  neo4j.DriverWithContext
	cfg Config
	log zerolog.Logger

	nodesLoaded bool
	nodesWaived bool
}

// New creates an Importer on top of an existing driver. Use [Connect] to
// obtain a verified driver.
func New(db neo4j.DriverWithContext, configurers ...Configurer) *Importer {
	cfg := defaultConfig()
	for _, c := range configurers {
		c(&cfg)
	}
	return &Importer{
		db:  db,
		cfg: cfg,
		log: cfg.Logger,
	}
}

// Config returns the effective configuration.
func (imp *Importer) Config() Config { return imp.cfg }

// Close releases the driver and every pooled connection.
func (imp *Importer) Close(ctx context.Context) error {
	return imp.db.Close(ctx)
}

// EnsureConstraints creates the uniqueness constraint of every node label if
// it does not exist yet. It stops at the first failure, which is returned as a
// [*ConstraintError]; loading must not start without the constraints.
func (imp *Importer) EnsureConstraints(ctx context.Context) ([]ConstraintResult, error) {
	sess := imp.writeSession(ctx)
	defer sess.Close(ctx)

	specs := ConstraintSpecs()
	results := make([]ConstraintResult, 0, len(specs))
	for _, spec := range specs {
		summary, err := writeTx(ctx, sess, spec.Cypher(), nil)
		if err != nil {
			imp.log.Error().Err(err).Str("constraint", spec.Name()).Msg("constraint failed")
			return results, &ConstraintError{Name: spec.Name(), Err: err}
		}
		res := ConstraintResult{
			Name:    spec.Name(),
			Label:   spec.Label,
			Key:     spec.Key,
			Created: countersOf(summary).ConstraintsAdded > 0,
		}
		imp.log.Info().
			Str("phase", string(ConstraintPhase)).
			Str("constraint", res.Name).
			Bool("created", res.Created).
			Msg("constraint ready")
		results = append(results, res)
	}
	return results, nil
}

// LoadNodes runs every node statement. Under [ContinueOnError] the returned
// error is nil and failures are reported in the result; under [FailFast] the
// first failure is returned as a [*BulkOperationError].
//
// The node phase counts as complete once LoadNodes returns a nil error.
func (imp *Importer) LoadNodes(ctx context.Context) (*PhaseResult, error) {
	res, err := imp.runPhase(ctx, NodePhase, NodeStatements(imp.cfg.BatchSize))
	if err == nil {
		imp.nodesLoaded = true
	}
	return res, err
}

// WaiveNodePhase allows [Importer.LoadRelationships] to run without a prior
// [Importer.LoadNodes], for databases that already hold the nodes.
func (imp *Importer) WaiveNodePhase() {
	imp.nodesWaived = true
}

// LoadRelationships runs every relationship statement with the same failure
// semantics as [Importer.LoadNodes]. It returns [ErrNodesNotLoaded] without
// contacting the database unless the node phase completed or was waived.
func (imp *Importer) LoadRelationships(ctx context.Context) (*PhaseResult, error) {
	if !imp.nodesLoaded && !imp.nodesWaived {
		return nil, ErrNodesNotLoaded
	}
	return imp.runPhase(ctx, RelationshipPhase, RelationshipStatements(imp.cfg.BatchSize))
}

// Run executes the pipeline and returns its report, which is never nil. With
// no phases every phase runs. The node phase is always preceded by the
// constraints. Selecting relationships without nodes requires
// [Importer.WaiveNodePhase] to have been called.
//
// The returned error is non-nil only when the run aborted; failed operations
// under [ContinueOnError] are reported through [Report.Failed].
func (imp *Importer) Run(ctx context.Context, phases ...Phase) (report *Report, err error) {
	report = newReport()
	log := imp.log
	imp.log = log.With().Str("run_id", report.RunID).Logger()
	defer func() {
		imp.log = log
		report.Finished = time.Now()
		if err != nil {
			report.Fatal = err.Error()
		}
	}()

	want := func(p Phase) bool {
		return len(phases) == 0 || slices.Contains(phases, p)
	}

	if want(ConstraintPhase) || want(NodePhase) {
		if report.Constraints, err = imp.EnsureConstraints(ctx); err != nil {
			return report, err
		}
	}
	if want(NodePhase) {
		if report.Nodes, err = imp.LoadNodes(ctx); err != nil {
			return report, err
		}
	}
	if want(RelationshipPhase) {
		if report.Relationships, err = imp.LoadRelationships(ctx); err != nil {
			return report, err
		}
	}

	imp.log.Info().
		Int("nodes_created", report.Nodes.Totals().NodesCreated).
		Int("relationships_created", report.Relationships.Totals().RelationshipsCreated).
		Int("failed", len(report.Nodes.Failed())+len(report.Relationships.Failed())).
		Msg("import finished")
	return report, nil
}

func (imp *Importer) runPhase(ctx context.Context, phase Phase, stmts []Statement) (*PhaseResult, error) {
	imp.log.Info().
		Str("phase", string(phase)).
		Int("operations", len(stmts)).
		Int("parallelism", imp.cfg.Parallelism).
		Str("policy", imp.cfg.Policy.String()).
		Msg("phase started")

	result := &PhaseResult{Phase: phase}
	if imp.cfg.Parallelism <= 1 {
		sess := imp.writeSession(ctx)
		defer sess.Close(ctx)
		for _, st := range stmts {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			op := imp.run(ctx, sess, st)
			result.Ops = append(result.Ops, op)
			if op.Failed() && imp.cfg.Policy == FailFast {
				return result, op.Err
			}
		}
		return result, nil
	}

	ops := make([]OpResult, len(stmts))
	ran := make([]bool, len(stmts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.cfg.Parallelism)
	for i, st := range stmts {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sess := imp.writeSession(gctx)
			defer sess.Close(ctx)
			ops[i] = imp.run(gctx, sess, st)
			ran[i] = true
			if ops[i].Failed() && imp.cfg.Policy == FailFast {
				return ops[i].Err
			}
			return nil
		})
	}
	err := g.Wait()
	for i, op := range ops {
		if ran[i] {
			result.Ops = append(result.Ops, op)
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return result, err
}

// run executes a single statement and, when it succeeded, counts the rows its
// key filter dropped.
func (imp *Importer) run(ctx context.Context, sess neo4j.SessionWithContext, st Statement) OpResult {
	file := imp.cfg.Files.Name(st.File)
	op := OpResult{Name: st.Name, Phase: st.Phase, File: file}
	log := imp.log.With().
		Str("phase", string(st.Phase)).
		Str("operation", st.Name).
		Str("file", file).
		Logger()

	start := time.Now()
	params := imp.cfg.Files.Params()
	summary, err := autoCommit(ctx, sess, st.Cypher, params)
	if err != nil {
		op.Err = &BulkOperationError{Operation: st.Name, Phase: st.Phase, File: file, Err: err}
		op.Cancelled = ctx.Err() != nil
	} else {
		op.Counters = countersOf(summary)
		if imp.cfg.CountSkipped && st.SkipCypher != "" {
			n, err := countSkipped(ctx, sess, st.SkipCypher, params)
			if err != nil {
				log.Warn().Err(err).Msg("could not count skipped rows")
			} else {
				op.Skipped = n
			}
		}
	}
	op.Duration = time.Since(start)

	switch {
	case op.Cancelled:
		log.Warn().Err(op.Err).Dur("duration", op.Duration).Msg("operation cancelled")
	case op.Failed():
		log.Error().Err(op.Err).Dur("duration", op.Duration).Msg("operation failed")
	default:
		log.Info().
			Int("nodes_created", op.Counters.NodesCreated).
			Int("relationships_created", op.Counters.RelationshipsCreated).
			Int("properties_set", op.Counters.PropertiesSet).
			Int64("skipped", op.Skipped).
			Dur("duration", op.Duration).
			Msg("operation done")
	}
	if imp.cfg.Observer != nil {
		imp.cfg.Observer.ObserveOperation(op)
	}
	return op
}

func countSkipped(ctx context.Context, sess neo4j.SessionWithContext, cypher string, params map[string]any) (int64, error) {
	rec, err := single(ctx, sess, cypher, params)
	if err != nil {
		return 0, err
	}
	v, ok := rec.Get("skipped")
	if !ok {
		return 0, fmt.Errorf("skip count: no %q column", "skipped")
	}
	return cast.ToInt64E(v)
}
