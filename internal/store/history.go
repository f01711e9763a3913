package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Prediction is the canonical stored prediction shape: the primary label with
// its confidence plus the ranked runner-up labels.
type Prediction struct {
	Disease    string        `bson:"disease" json:"disease"`
	Confidence float32       `bson:"confidence" json:"confidence"`
	Ranked     []RankedLabel `bson:"ranked,omitempty" json:"ranked,omitempty"`
}

// RankedLabel is one (label, confidence) pair of a ranked prediction list.
type RankedLabel struct {
	Label      string  `bson:"label" json:"label"`
	Confidence float32 `bson:"confidence" json:"confidence"`
}

// HistoryRecord is a document in the patient_history collection. Records are
// append-only; nothing in the service mutates or deletes them.
type HistoryRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	PatientID  string             `bson:"patient_id" json:"patient_id"`
	Filename   string             `bson:"filename" json:"filename"`
	Prediction Prediction         `bson:"prediction" json:"prediction"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}

// HistoryStore handles prediction history persistence in MongoDB.
type HistoryStore struct {
	col *mongo.Collection
}

func NewHistoryStore(db *mongo.Database) *HistoryStore {
	return &HistoryStore{col: db.Collection("patient_history")}
}

// Insert appends a record and returns its assigned id as a hex string.
func (s *HistoryStore) Insert(ctx context.Context, rec *HistoryRecord) (string, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	res, err := s.col.InsertOne(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("mongo insert history: %w", err)
	}
	oid := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

// ListByPatient returns all records for a patient, newest first. An unknown
// patient id yields an empty slice, not an error.
func (s *HistoryStore) ListByPatient(ctx context.Context, patientID string) ([]HistoryRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"patient_id": patientID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	records := []HistoryRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CountByDisease aggregates record counts grouped by the predicted disease.
func (s *HistoryStore) CountByDisease(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$prediction.disease"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Disease string `bson:"_id"`
		Count   int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Disease] = row.Count
	}
	return counts, nil
}
