package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo implements Store on a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials the server and pings it before returning a handle.
func ConnectMongo(ctx context.Context, uri, dbNameSuffix string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	dbName := fmt.Sprintf("quoridorn-%s", dbNameSuffix)
	log.Info().Str("module", "store.mongo").Str("db", dbName).Msg("connected")
	return &Mongo{client: client, db: client.Database(dbName)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) FindOne(ctx context.Context, col string, filter bson.M, out any) (bool, error) {
	err := m.db.Collection(col).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mongo) Find(ctx context.Context, col string, filter bson.M, sortByOrder bool, out any) error {
	opts := options.Find()
	if sortByOrder {
		opts.SetSort(bson.D{{Key: "order", Value: 1}})
	}
	cur, err := m.db.Collection(col).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (m *Mongo) InsertOne(ctx context.Context, col string, doc any) error {
	_, err := m.db.Collection(col).InsertOne(ctx, doc)
	return err
}

func (m *Mongo) InsertMany(ctx context.Context, col string, docs []any) error {
	_, err := m.db.Collection(col).InsertMany(ctx, docs)
	return err
}

func (m *Mongo) ReplaceOne(ctx context.Context, col string, filter bson.M, doc any) error {
	_, err := m.db.Collection(col).ReplaceOne(ctx, filter, doc)
	return err
}

func (m *Mongo) DeleteOne(ctx context.Context, col string, filter bson.M) error {
	_, err := m.db.Collection(col).DeleteOne(ctx, filter)
	return err
}

func (m *Mongo) DeleteMany(ctx context.Context, col string, filter bson.M) (int64, error) {
	res, err := m.db.Collection(col).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *Mongo) Drop(ctx context.Context, col string) error {
	return m.db.Collection(col).Drop(ctx)
}
