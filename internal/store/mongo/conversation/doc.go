// Package mongo provides a MongoDB-backed implementation of
// convstore.Store. Build the low-level client via
// internal/store/mongo/conversation/clients/mongo and pass it to NewStore
// so the chat streaming pipeline and agent execution loop can persist
// conversation transcripts durably across process restarts and replicas.
package mongo
