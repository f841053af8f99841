// Package mongo hosts the MongoDB client used by the execution store.
package mongo

//go:generate cmg gen .

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"goa.design/clue/health"

	"github.com/infrabay/opscore/internal/execstore"
	"github.com/infrabay/opscore/internal/ids"
	"github.com/infrabay/opscore/internal/tools"
)

const (
	defaultExecutionsCollection = "tool_executions"
	defaultOpTimeout            = 5 * time.Second
	executionClientName         = "execution-mongo"
)

// Client exposes Mongo-backed operations for tool-execution records.
type Client interface {
	health.Pinger

	InsertExecution(ctx context.Context, exec execstore.ToolExecution) error
	FindExecution(ctx context.Context, id ids.ExecutionID) (execstore.ToolExecution, error)
	ReplaceExecution(ctx context.Context, exec execstore.ToolExecution) error
	ListPendingByRun(ctx context.Context, runID ids.RunID) ([]execstore.ToolExecution, error)
}

// Options configures the Mongo execution client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collectionName := opts.Collection
	if collectionName == "" {
		collectionName = defaultExecutionsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collectionName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string {
	return executionClientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) InsertExecution(ctx context.Context, exec execstore.ToolExecution) error {
	if exec.ID == "" {
		return errors.New("execution id is required")
	}
	now := time.Now().UTC()
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = now
	}
	if exec.UpdatedAt.IsZero() {
		exec.UpdatedAt = now
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.coll.InsertOne(ctx, fromExecution(exec))
	return err
}

func (c *client) FindExecution(ctx context.Context, id ids.ExecutionID) (execstore.ToolExecution, error) {
	if id == "" {
		return execstore.ToolExecution{}, errors.New("execution id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc executionDocument
	if err := c.coll.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return execstore.ToolExecution{}, execstore.ErrNotFound
		}
		return execstore.ToolExecution{}, err
	}
	return doc.toExecution(), nil
}

func (c *client) ReplaceExecution(ctx context.Context, exec execstore.ToolExecution) error {
	if exec.ID == "" {
		return errors.New("execution id is required")
	}
	exec.UpdatedAt = time.Now().UTC()
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"_id": string(exec.ID)}
	update := bson.M{"$set": fromExecution(exec)}
	res, err := c.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(false))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return execstore.ErrNotFound
	}
	return nil
}

func (c *client) ListPendingByRun(ctx context.Context, runID ids.RunID) ([]execstore.ToolExecution, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{
		"run_id": string(runID),
		"status": bson.M{"$nin": []string{
			string(execstore.StatusRejected),
			string(execstore.StatusExpired),
			string(execstore.StatusSucceeded),
			string(execstore.StatusFailed),
		}},
	}
	docs, err := c.coll.FindPendingByRun(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]execstore.ToolExecution, len(docs))
	for i, doc := range docs {
		out[i] = doc.toExecution()
	}
	return out, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type executionDocument struct {
	ID          string    `bson:"_id"`
	OrgID       string    `bson:"org_id"`
	RunID       string    `bson:"run_id"`
	ToolCallID  string    `bson:"tool_call_id,omitempty"`
	Tool        string    `bson:"tool"`
	RiskLevel   string    `bson:"risk_level"`
	Payload     []byte    `bson:"payload,omitempty"`
	Status      string    `bson:"status"`
	Result      []byte    `bson:"result,omitempty"`
	Error       string    `bson:"error,omitempty"`
	RequestedBy string    `bson:"requested_by,omitempty"`
	DecidedBy   string    `bson:"decided_by,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func fromExecution(exec execstore.ToolExecution) executionDocument {
	return executionDocument{
		ID:          string(exec.ID),
		OrgID:       string(exec.OrgID),
		RunID:       string(exec.RunID),
		ToolCallID:  exec.ToolCallID,
		Tool:        exec.Tool.String(),
		RiskLevel:   string(exec.RiskLevel),
		Payload:     exec.Payload,
		Status:      string(exec.Status),
		Result:      exec.Result,
		Error:       exec.Error,
		RequestedBy: exec.RequestedBy,
		DecidedBy:   exec.DecidedBy,
		CreatedAt:   exec.CreatedAt,
		UpdatedAt:   exec.UpdatedAt,
	}
}

func (doc executionDocument) toExecution() execstore.ToolExecution {
	return execstore.ToolExecution{
		ID:          ids.ExecutionID(doc.ID),
		OrgID:       ids.OrgID(doc.OrgID),
		RunID:       ids.RunID(doc.RunID),
		ToolCallID:  doc.ToolCallID,
		Tool:        tools.Ident(doc.Tool),
		RiskLevel:   tools.RiskLevel(doc.RiskLevel),
		Payload:     doc.Payload,
		Status:      execstore.Status(doc.Status),
		Result:      doc.Result,
		Error:       doc.Error,
		RequestedBy: doc.RequestedBy,
		DecidedBy:   doc.DecidedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func ensureIndexes(ctx context.Context, coll collection) error {
	index := mongodriver.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "status", Value: 1}},
	}
	_, err := coll.Indexes().CreateOne(ctx, index)
	return err
}

func newClientWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*client, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &client{mongo: mongoClient, coll: coll, timeout: timeout}, nil
}

type collection interface {
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	FindPendingByRun(ctx context.Context, filter any) ([]executionDocument, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...*options.CreateIndexesOptions) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc, opts...)
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) FindPendingByRun(ctx context.Context, filter any) ([]executionDocument, error) {
	cur, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []executionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error {
	return r.res.Decode(val)
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...*options.CreateIndexesOptions) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}
