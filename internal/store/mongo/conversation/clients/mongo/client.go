// Package mongo hosts the MongoDB client used by the conversation store.
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

	"github.com/infrabay/opscore/internal/convstore"
	"github.com/infrabay/opscore/internal/ids"
)

const (
	defaultConversationsCollection = "conversations"
	defaultMessagesCollection      = "conversation_messages"
	defaultOpTimeout               = 5 * time.Second
	conversationClientName         = "conversation-mongo"
)

// Client exposes Mongo-backed operations for conversations and messages.
type Client interface {
	health.Pinger

	InsertConversation(ctx context.Context, conv convstore.Conversation) error
	FindConversation(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error)
	InsertMessage(ctx context.Context, msg convstore.Message) error
	ReplaceMessage(ctx context.Context, msg convstore.Message) error
	FindMessage(ctx context.Context, conversationID ids.ConversationID, messageID string) (convstore.Message, error)
	FindMessagesByConversation(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error)
}

// Options configures the Mongo conversation client.
type Options struct {
	Client               *mongodriver.Client
	Database             string
	ConversationsColl    string
	MessagesColl         string
	Timeout              time.Duration
}

type client struct {
	mongo       *mongodriver.Client
	conversations collection
	messages      collection
	timeout     time.Duration
}

// New returns a Client backed by MongoDB.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	convColl := opts.ConversationsColl
	if convColl == "" {
		convColl = defaultConversationsCollection
	}
	msgColl := opts.MessagesColl
	if msgColl == "" {
		msgColl = defaultMessagesCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	db := opts.Client.Database(opts.Database)
	convWrapper := mongoCollection{coll: db.Collection(convColl)}
	msgWrapper := mongoCollection{coll: db.Collection(msgColl)}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, msgWrapper); err != nil {
		return nil, err
	}
	return &client{mongo: opts.Client, conversations: convWrapper, messages: msgWrapper, timeout: timeout}, nil
}

func (c *client) Name() string {
	return conversationClientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) InsertConversation(ctx context.Context, conv convstore.Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.conversations.InsertOne(ctx, fromConversation(conv))
	return err
}

func (c *client) FindConversation(ctx context.Context, id ids.ConversationID) (convstore.Conversation, error) {
	if id == "" {
		return convstore.Conversation{}, errors.New("conversation id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc conversationDocument
	if err := c.conversations.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return convstore.Conversation{}, convstore.ErrNotFound
		}
		return convstore.Conversation{}, err
	}
	return doc.toConversation(), nil
}

func (c *client) InsertMessage(ctx context.Context, msg convstore.Message) error {
	if msg.ID == "" {
		return errors.New("message id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err := c.messages.InsertOne(ctx, fromMessage(msg))
	return err
}

func (c *client) ReplaceMessage(ctx context.Context, msg convstore.Message) error {
	if msg.ID == "" {
		return errors.New("message id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"_id": msg.ID, "conversation_id": string(msg.ConversationID)}
	update := bson.M{"$set": fromMessage(msg)}
	res, err := c.messages.UpdateOne(ctx, filter, update, options.Update().SetUpsert(false))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return convstore.ErrNotFound
	}
	return nil
}

func (c *client) FindMessage(ctx context.Context, conversationID ids.ConversationID, messageID string) (convstore.Message, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc messageDocument
	filter := bson.M{"_id": messageID, "conversation_id": string(conversationID)}
	if err := c.messages.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return convstore.Message{}, convstore.ErrNotFound
		}
		return convstore.Message{}, err
	}
	return doc.toMessage(), nil
}

func (c *client) FindMessagesByConversation(ctx context.Context, conversationID ids.ConversationID) ([]convstore.Message, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	docs, err := c.messages.FindByConversation(ctx, bson.M{"conversation_id": string(conversationID)})
	if err != nil {
		return nil, err
	}
	out := make([]convstore.Message, len(docs))
	for i, doc := range docs {
		out[i] = doc.toMessage()
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

type conversationDocument struct {
	ID          string    `bson:"_id"`
	OwnerUserID string    `bson:"owner_user_id"`
	OrgID       string    `bson:"org_id"`
	ProjectID   string    `bson:"project_id,omitempty"`
	ServerID    string    `bson:"server_id,omitempty"`
	AgentID     string    `bson:"agent_id"`
	CreatedAt   time.Time `bson:"created_at"`
}

func fromConversation(conv convstore.Conversation) conversationDocument {
	return conversationDocument{
		ID:          string(conv.ID),
		OwnerUserID: conv.OwnerUserID,
		OrgID:       string(conv.OrgID),
		ProjectID:   conv.ProjectID,
		ServerID:    conv.ServerID,
		AgentID:     string(conv.AgentID),
		CreatedAt:   conv.CreatedAt.UTC(),
	}
}

func (doc conversationDocument) toConversation() convstore.Conversation {
	return convstore.Conversation{
		ID:          ids.ConversationID(doc.ID),
		OwnerUserID: doc.OwnerUserID,
		OrgID:       ids.OrgID(doc.OrgID),
		ProjectID:   doc.ProjectID,
		ServerID:    doc.ServerID,
		AgentID:     ids.AgentID(doc.AgentID),
		CreatedAt:   doc.CreatedAt,
	}
}

type toolCallRefDocument struct {
	ID        string `bson:"id"`
	Name      string `bson:"name"`
	Arguments []byte `bson:"arguments,omitempty"`
}

type messageDocument struct {
	ID             string                `bson:"_id"`
	ConversationID string                `bson:"conversation_id"`
	Role           string                `bson:"role"`
	Content        string                `bson:"content,omitempty"`
	ToolCalls      []toolCallRefDocument `bson:"tool_calls,omitempty"`
	CreatedAt      time.Time             `bson:"created_at"`
	Status         string                `bson:"status"`
}

func fromMessage(msg convstore.Message) messageDocument {
	calls := make([]toolCallRefDocument, len(msg.ToolCalls))
	for i, c := range msg.ToolCalls {
		calls[i] = toolCallRefDocument{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return messageDocument{
		ID:             msg.ID,
		ConversationID: string(msg.ConversationID),
		Role:           string(msg.Role),
		Content:        msg.Content,
		ToolCalls:      calls,
		CreatedAt:      msg.CreatedAt.UTC(),
		Status:         string(msg.Status),
	}
}

func (doc messageDocument) toMessage() convstore.Message {
	calls := make([]convstore.ToolCallRef, len(doc.ToolCalls))
	for i, c := range doc.ToolCalls {
		calls[i] = convstore.ToolCallRef{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return convstore.Message{
		ID:             doc.ID,
		ConversationID: ids.ConversationID(doc.ConversationID),
		Role:           convstore.Role(doc.Role),
		Content:        doc.Content,
		ToolCalls:      calls,
		CreatedAt:      doc.CreatedAt,
		Status:         convstore.MessageStatus(doc.Status),
	}
}

func ensureIndexes(ctx context.Context, messages collection) error {
	index := mongodriver.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	}
	_, err := messages.Indexes().CreateOne(ctx, index)
	return err
}

type collection interface {
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongodriver.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	FindByConversation(ctx context.Context, filter any) ([]messageDocument, error)
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

func (c mongoCollection) FindByConversation(ctx context.Context, filter any) ([]messageDocument, error) {
	cur, err := c.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []messageDocument
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
