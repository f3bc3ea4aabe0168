package neoimport

import (
	"errors"
	"fmt"
)

// ErrNodesNotLoaded is returned by [Importer.LoadRelationships] when the node
// phase has neither completed nor been waived with [Importer.WaiveNodePhase].
var ErrNodesNotLoaded = errors.New("neoimport: relationships require the node phase to complete first")

// ConnectionError reports that the driver could not be created or the
// endpoint could not be reached / authenticated against.
type ConnectionError struct {
	URI string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("neoimport: connect to %s: %v", e.URI, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ConstraintError reports a failed uniqueness constraint statement.
type ConstraintError struct {
	Name string
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("neoimport: create constraint %s: %v", e.Name, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// BulkOperationError reports that a whole node or relationship statement
// failed, e.g. because a CSV could not be fetched or the connection dropped
// mid-stream.
type BulkOperationError struct {
	Operation string
	Phase     Phase
	File      string
	Err       error
}

func (e *BulkOperationError) Error() string {
	return fmt.Sprintf("neoimport: %s %s (%s): %v", e.Phase, e.Operation, e.File, e.Err)
}

func (e *BulkOperationError) Unwrap() error { return e.Err }
