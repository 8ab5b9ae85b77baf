package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/complydesk/chat-server/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const messagesCollection = "messages"

// MongoMessageStore persists messages in a MongoDB collection keyed by
// room and creation time.
type MongoMessageStore struct {
	client   *mongo.Client
	messages *mongo.Collection
	log      *log.Logger
}

func NewMongoMessageStore(ctx context.Context, uri, dbName string, logger *log.Logger) (*MongoMessageStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &MongoMessageStore{
		client:   client,
		messages: client.Database(dbName).Collection(messagesCollection),
		log:      logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return s, nil
}

func (s *MongoMessageStore) ensureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "room_name", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user.id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "content", Value: "text"}},
		},
	})

	return err
}

func (s *MongoMessageStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoMessageStore) Append(ctx context.Context, msg *types.Message) error {
	_, err := s.messages.InsertOne(ctx, newMessageDoc(msg))
	return err
}

func (s *MongoMessageStore) GetById(ctx context.Context, id string) (*types.Message, error) {
	var doc messageDoc
	if err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	msg := doc.toMessage()
	return &msg, nil
}

func (s *MongoMessageStore) Update(ctx context.Context, id string, params UpdateMessageParams) error {
	update := bson.M{"$set": bson.M{
		"content":    params.Content,
		"is_edited":  params.IsEdited,
		"updated_at": params.UpdatedAt,
		"metadata":   params.Metadata,
	}}

	res, err := s.messages.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MongoMessageStore) Delete(ctx context.Context, id string) error {
	res, err := s.messages.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MongoMessageStore) ListByRoom(ctx context.Context, roomName string, limit, skip int64, ascending bool) ([]types.Message, error) {
	order := -1
	if ascending {
		order = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: order}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.messages.Find(ctx, bson.M{"room_name": roomName}, opts)
	if err != nil {
		return nil, err
	}

	return decodeMessages(ctx, cursor)
}

func (s *MongoMessageStore) ListByUser(ctx context.Context, userId string, limit, skip int64) ([]types.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.messages.Find(ctx, bson.M{"user.id": userId}, opts)
	if err != nil {
		return nil, err
	}

	return decodeMessages(ctx, cursor)
}

func (s *MongoMessageStore) ListSince(ctx context.Context, roomName string, since time.Time, limit int64) ([]types.Message, error) {
	filter := bson.M{
		"room_name":  roomName,
		"created_at": bson.M{"$gte": since},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	return decodeMessages(ctx, cursor)
}

func (s *MongoMessageStore) Search(ctx context.Context, roomName, term string, limit int64) ([]types.Message, error) {
	filter := bson.M{
		"room_name": roomName,
		"$text":     bson.M{"$search": term},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	return decodeMessages(ctx, cursor)
}

func (s *MongoMessageStore) CountByRoom(ctx context.Context, roomName string) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{"room_name": roomName})
}

func (s *MongoMessageStore) DeleteByRoom(ctx context.Context, roomName string) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"room_name": roomName})
	if err != nil {
		return 0, err
	}

	return res.DeletedCount, nil
}

func decodeMessages(ctx context.Context, cursor *mongo.Cursor) ([]types.Message, error) {
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	msgs := make([]types.Message, len(docs))
	for i, doc := range docs {
		msgs[i] = doc.toMessage()
	}

	return msgs, nil
}
