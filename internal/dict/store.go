package dict

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists dictionary entries in the reference document store, one
// collection per categorical field with documents {name, code}. Codes come
// from an auto-incrementing counter scoped to the field.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// countersCollection holds one {_id: field, seq: n} document per dictionary.
const countersCollection = "counters"

// EnsureIndexes creates the unique name and code indexes on every tracked
// dictionary collection. Called once at startup.
func (s *Store) EnsureIndexes(ctx context.Context, fields []string) error {
	for _, field := range fields {
		coll := s.db.Collection(field)
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		})
		if err != nil {
			return fmt.Errorf("ensure indexes %s: %w", field, err)
		}
	}
	return nil
}

// ReadAll returns every entry of one dictionary collection.
func (s *Store) ReadAll(ctx context.Context, field string) ([]Entry, error) {
	cur, err := s.db.Collection(field).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []Entry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Register inserts a new entry with the next code for the field and returns
// that code. Names are stored lowercased so lookups stay case-insensitive.
// Registering an existing name is idempotent: the already-issued code is
// returned and the counter value consumed for the attempt is abandoned
// (codes are never reassigned, gaps are fine).
func (s *Store) Register(ctx context.Context, field, name string) (int32, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, fmt.Errorf("register %s: empty name", field)
	}

	code, err := s.nextCode(ctx, field)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", field, err)
	}

	_, err = s.db.Collection(field).InsertOne(ctx, Entry{Name: name, Code: code})
	if err == nil {
		return code, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("register %s %q: %w", field, name, err)
	}

	var existing Entry
	if err := s.db.Collection(field).FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&existing); err != nil {
		return 0, fmt.Errorf("register %s %q: %w", field, name, err)
	}
	return existing.Code, nil
}

// nextCode atomically increments the field's counter and returns the new
// value. The counter document is created on first use.
func (s *Store) nextCode(ctx context.Context, field string) (int32, error) {
	var doc struct {
		Seq int32 `bson:"seq"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(
		ctx,
		bson.D{{Key: "_id", Value: field}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: 1}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
