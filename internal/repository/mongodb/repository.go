package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/banjarejo/greensmart/internal/domain/models"
	"github.com/banjarejo/greensmart/internal/repository"
)

// Store implements repository.Store on MongoDB. Each owner's records live in
// a collection named users.{owner}.{collection}, which keeps the per-user
// namespace of the original document layout and lets change streams watch a
// single identity's data.
type Store struct {
	client *mongo.Client
	dbName string
	logger *zap.Logger
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, uri, dbName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{client: client, dbName: dbName, logger: logger}, nil
}

func (s *Store) collection(owner, collection string) *mongo.Collection {
	name := fmt.Sprintf("users.%s.%s", owner, collection)
	return s.client.Database(s.dbName).Collection(name)
}

// Insert writes a new document, assigning a hex object id when the document
// does not carry one.
func (s *Store) Insert(ctx context.Context, owner, collection string, doc any) (string, error) {
	raw, err := toDocument(doc)
	if err != nil {
		return "", err
	}

	id, _ := raw["_id"].(string)
	if id == "" {
		id = primitive.NewObjectID().Hex()
		raw["_id"] = id
	}

	if _, err := s.collection(owner, collection).InsertOne(ctx, raw); err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

// Replace overwrites the full document, creating it when absent. This mirrors
// the set-document semantics of the original store.
func (s *Store) Replace(ctx context.Context, owner, collection, id string, doc any) error {
	raw, err := toDocument(doc)
	if err != nil {
		return err
	}
	raw["_id"] = id

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection(owner, collection).ReplaceOne(ctx, bson.M{"_id": id}, raw, opts); err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the document with the given id. Deleting an absent document
// is not an error.
func (s *Store) Delete(ctx context.Context, owner, collection, id string) error {
	if _, err := s.collection(owner, collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// FindByID decodes a single document into out.
func (s *Store) FindByID(ctx context.Context, owner, collection, id string, out any) error {
	err := s.collection(owner, collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return nil
}

// FindAll decodes the full collection into out.
func (s *Store) FindAll(ctx context.Context, owner, collection string, out any) error {
	cursor, err := s.collection(owner, collection).Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("find all %s: %w", collection, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", collection, err)
	}
	return nil
}

// Watch opens a change stream on the owner's collection and signals once per
// remote event. Consumers re-read the full record set on each signal.
func (s *Store) Watch(ctx context.Context, owner, collection string) (repository.Changes, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := s.collection(owner, collection).Watch(streamCtx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", collection, err)
	}

	ch := &changeStream{
		signal: make(chan struct{}, 1),
		cancel: cancel,
	}

	go func() {
		defer close(ch.signal)
		defer func() {
			if err := stream.Close(context.Background()); err != nil {
				s.logger.Warn("failed closing change stream",
					zap.String("collection", collection), zap.Error(err))
			}
		}()

		for stream.Next(streamCtx) {
			ch.notify()
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			s.logger.Error("change stream failed",
				zap.String("collection", collection), zap.Error(err))
		}
	}()

	return ch, nil
}

// WithTransaction runs fn inside a multi-document transaction. Every store
// call inside fn must use the session-bound context fn receives.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// Close disconnects the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// toDocument round-trips doc through bson so an _id can be injected without
// the caller exposing one.
func toDocument(doc any) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var raw bson.M
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return raw, nil
}

type changeStream struct {
	signal chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

func (c *changeStream) C() <-chan struct{} { return c.signal }

func (c *changeStream) Close() {
	c.once.Do(c.cancel)
}

// notify coalesces bursts of events into a single pending signal.
func (c *changeStream) notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}
