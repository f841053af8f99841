// Package mongo provides a MongoDB-backed implementation of
// execstore.Store. Build the low-level client via
// internal/store/mongo/execution/clients/mongo and pass it to NewStore so
// higher-level services can persist tool-execution lifecycle records
// durably across process restarts and replicas.
package mongo
