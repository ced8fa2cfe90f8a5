package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/richd0tcom/waypoint/internal/domain"
)

type MongoGeofenceStore struct {
	collection *mongo.Collection
}

func NewMongoGeofenceStore(client *mongo.Client, database string) (*MongoGeofenceStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	collection := client.Database(database).Collection("geofence_data")

	collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "imei", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})

	return &MongoGeofenceStore{collection: collection}, nil
}

func (s *MongoGeofenceStore) Insert(ctx context.Context, region *domain.GeofenceRegion) error {
	if _, err := s.collection.InsertOne(ctx, region); err != nil {
		return fmt.Errorf("failed to insert geofence region: %w", err)
	}
	return nil
}

func (s *MongoGeofenceStore) ListByIMEI(ctx context.Context, imei string) ([]domain.GeofenceRegion, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"imei": imei})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var regions []domain.GeofenceRegion
	if err := cursor.All(ctx, &regions); err != nil {
		return nil, err
	}
	return regions, nil
}
