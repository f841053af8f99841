// Package mongo provides a MongoDB-backed implementation of the agent
// execution run store. Build the low-level client via
// internal/store/mongo/run/clients/mongo and pass it to NewStore so
// higher-level services can persist run metadata outside the core runtime.
package mongo
