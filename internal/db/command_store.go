package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/richd0tcom/waypoint/internal/domain"
)

type MongoCommandStore struct {
	collection *mongo.Collection
}

func NewMongoCommandStore(client *mongo.Client, database string) (*MongoCommandStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	collection := client.Database(database).Collection("device_commands")

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "imei", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "cmd_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	collection.Indexes().CreateMany(ctx, indexModels)

	return &MongoCommandStore{collection: collection}, nil
}

func (s *MongoCommandStore) Insert(ctx context.Context, cmd *domain.DeviceCommand) error {
	if _, err := s.collection.InsertOne(ctx, cmd); err != nil {
		return fmt.Errorf("failed to insert command record: %w", err)
	}
	return nil
}

func (s *MongoCommandStore) ListByIMEI(ctx context.Context, imei string, limit int64) ([]domain.DeviceCommand, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{"imei": imei}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var commands []domain.DeviceCommand
	if err := cursor.All(ctx, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}

func (s *MongoCommandStore) LatestByIMEI(ctx context.Context, imei string) (*domain.DeviceCommand, error) {
	return s.findOne(ctx, bson.M{"imei": imei})
}

func (s *MongoCommandStore) LatestPublished(ctx context.Context, imei string) (*domain.DeviceCommand, error) {
	return s.findOne(ctx, bson.M{"imei": imei, "status": domain.StatusPublished})
}

func (s *MongoCommandStore) FindPublished(ctx context.Context, imei, cmdID string) (*domain.DeviceCommand, error) {
	return s.findOne(ctx, bson.M{"imei": imei, "cmd_id": cmdID, "status": domain.StatusPublished})
}

func (s *MongoCommandStore) findOne(ctx context.Context, filter bson.M) (*domain.DeviceCommand, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var cmd domain.DeviceCommand
	err := s.collection.FindOne(ctx, filter, opts).Decode(&cmd)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

func (s *MongoCommandStore) MarkDelivered(ctx context.Context, cmdID string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":     domain.StatusDelivered,
		"updated_at": at,
	}}
	_, err := s.collection.UpdateOne(ctx, bson.M{"cmd_id": cmdID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark command delivered: %w", err)
	}
	return nil
}
