package neoimport

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// UserAgent is sent to the server on every connection.
const UserAgent = "neoimport/1.0"

// DriverOptions are the connection pool settings an import needs to tune.
// Zero values keep the driver defaults.
type DriverOptions struct {
	MaxConnectionPoolSize        int
	ConnectionAcquisitionTimeout time.Duration
	SocketConnectTimeout         time.Duration
}

// Configure returns a configurer for [neo4j.NewDriverWithContext].
func (o DriverOptions) Configure() func(*config.Config) {
	return func(c *config.Config) {
		c.UserAgent = UserAgent
		if o.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = o.MaxConnectionPoolSize
		}
		if o.ConnectionAcquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = o.ConnectionAcquisitionTimeout
		}
		if o.SocketConnectTimeout > 0 {
			c.SocketConnectTimeout = o.SocketConnectTimeout
		}
	}
}

// Connect creates a driver and verifies the endpoint is reachable and accepts
// the credentials. Any failure is returned as a [*ConnectionError] and the
// driver, if one was created, is closed.
func Connect(
	ctx context.Context,
	uri, user, password string,
	configurers ...func(*config.Config),
) (neo4j.DriverWithContext, error) {
	db, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), configurers...)
	if err != nil {
		return nil, &ConnectionError{URI: uri, Err: err}
	}
	if err := Verify(ctx, db, uri); err != nil {
		_ = db.Close(ctx)
		return nil, err
	}
	return db, nil
}

// Verify checks that an existing driver can reach and authenticate against
// its server. A failure is returned as a [*ConnectionError] for uri.
func Verify(ctx context.Context, db neo4j.DriverWithContext, uri string) error {
	if err := db.VerifyConnectivity(ctx); err != nil {
		return &ConnectionError{URI: uri, Err: err}
	}
	return nil
}

// writeSession opens a write session on the configured database.
func (imp *Importer) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return imp.db.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: imp.cfg.Database,
	})
}

// writeTx runs work in a managed write transaction and returns the
// transaction's result summary.
func writeTx(
	ctx context.Context,
	sess neo4j.SessionWithContext,
	cypher string,
	params map[string]any,
) (neo4j.ResultSummary, error) {
	summary, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return nil, err
	}
	s, _ := summary.(neo4j.ResultSummary)
	return s, nil
}

// autoCommit runs cypher outside an explicit transaction, as CALL { } IN
// TRANSACTIONS requires, and returns the summary once the server is done.
func autoCommit(
	ctx context.Context,
	sess neo4j.SessionWithContext,
	cypher string,
	params map[string]any,
) (neo4j.ResultSummary, error) {
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Consume(ctx)
}

// single runs a read-only statement and returns its only record.
func single(
	ctx context.Context,
	sess neo4j.SessionWithContext,
	cypher string,
	params map[string]any,
) (*neo4j.Record, error) {
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Single(ctx)
}

func countersOf(summary neo4j.ResultSummary) Counters {
	if summary == nil {
		return Counters{}
	}
	c := summary.Counters()
	return Counters{
		NodesCreated:         c.NodesCreated(),
		RelationshipsCreated: c.RelationshipsCreated(),
		PropertiesSet:        c.PropertiesSet(),
		LabelsAdded:          c.LabelsAdded(),
		ConstraintsAdded:     c.ConstraintsAdded(),
	}
}
