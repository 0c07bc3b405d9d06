package cluster

import "errors"

// ErrClusterNotFound is returned when an operation references a cluster
// id that does not exist. Unlike the vector index's permissive policy
// for unknown document ids, an unknown cluster id indicates a caller
// programming error, so it is surfaced as an error rather than a no-op.
var ErrClusterNotFound = errors.New("cluster not found")
