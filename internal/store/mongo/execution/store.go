package mongo

import (
	"context"
	"errors"

	"github.com/infrabay/opscore/internal/execstore"
	clientsmongo "github.com/infrabay/opscore/internal/store/mongo/execution/clients/mongo"
	"github.com/infrabay/opscore/internal/ids"
)

// Options configures the Mongo-backed execution store.
type Options struct {
	Client clientsmongo.Client
}

// Store implements execstore.Store by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Store using the provided client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo instantiates the Store by constructing the underlying client.
func NewStoreFromMongo(opts clientsmongo.Options) (*Store, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

// Create implements execstore.Store.
func (s *Store) Create(ctx context.Context, exec execstore.ToolExecution) error {
	return s.client.InsertExecution(ctx, exec)
}

// Load implements execstore.Store.
func (s *Store) Load(ctx context.Context, id ids.ExecutionID) (execstore.ToolExecution, error) {
	return s.client.FindExecution(ctx, id)
}

// UpdateStatus implements execstore.Store by loading the current record,
// applying mutate, and writing the result back. The read-modify-write is not
// atomic; callers that need compare-and-swap semantics across replicas
// should serialize access to a given execution id through the approval bus.
func (s *Store) UpdateStatus(ctx context.Context, id ids.ExecutionID, mutate func(*execstore.ToolExecution)) error {
	exec, err := s.client.FindExecution(ctx, id)
	if err != nil {
		return err
	}
	mutate(&exec)
	return s.client.ReplaceExecution(ctx, exec)
}

// ListPendingByRun implements execstore.Store.
func (s *Store) ListPendingByRun(ctx context.Context, runID ids.RunID) ([]execstore.ToolExecution, error) {
	return s.client.ListPendingByRun(ctx, runID)
}
