package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/richd0tcom/waypoint/internal/domain"
)

// MongoTelemetryStore persists uplinks in a time-series collection
// keyed on received_at with imei as the meta field. Records are
// append-only; analytics read them as an immutable snapshot.
type MongoTelemetryStore struct {
	collection *mongo.Collection
}

func NewMongoTelemetryStore(client *mongo.Client, database string) (*MongoTelemetryStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db := client.Database(database)

	tsOptions := options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField("received_at").
			SetMetaField("imei").
			SetGranularity("minutes"),
	)

	db.CreateCollection(ctx, "analytics_data", tsOptions)
	collection := db.Collection("analytics_data")

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "imei", Value: 1},
				{Key: "device_time", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "imei", Value: 1},
				{Key: "packet", Value: 1},
				{Key: "received_at", Value: -1},
			},
		},
	}
	collection.Indexes().CreateMany(ctx, indexModels)

	return &MongoTelemetryStore{collection: collection}, nil
}

func (s *MongoTelemetryStore) Insert(ctx context.Context, rec *domain.TelemetryRecord) error {
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}
	return nil
}

func (s *MongoTelemetryStore) ListByIMEI(ctx context.Context, imei string, limit int64) ([]domain.TelemetryRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(limit)

	return s.find(ctx, bson.M{"imei": imei}, opts)
}

func (s *MongoTelemetryStore) Since(ctx context.Context, imei string, from time.Time) ([]domain.TelemetryRecord, error) {
	filter := bson.M{
		"imei":        imei,
		"device_time": bson.M{"$gte": from},
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "device_time", Value: 1}}))
}

// RecentNormal returns the latest normal packets, newest first.
func (s *MongoTelemetryStore) RecentNormal(ctx context.Context, imei string, limit int64) ([]domain.TelemetryRecord, error) {
	filter := bson.M{
		"imei":   imei,
		"packet": domain.PacketNormal,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(limit)

	return s.find(ctx, filter, opts)
}

func (s *MongoTelemetryStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]domain.TelemetryRecord, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.TelemetryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
