package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gogotex/gonotes/internal/note"
)

// MongoRepo implements a MongoDB-backed repository for notes. Notes are keyed
// by their string "id" field; SaveIfVersion is a single FindOneAndUpdate
// filtered on {id, version}.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo ensures the unique index on "id" and returns the repository.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create notes index: %w", err)
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Create(ctx context.Context, n *note.Note) (string, error) {
	prepareCreate(n)
	if _, err := m.col.InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrAlreadyExists
		}
		return "", err
	}
	return n.ID, nil
}

func (m *MongoRepo) Load(ctx context.Context, id string) (*note.Note, error) {
	var n note.Note
	if err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&n); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, note.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*note.Note, error) {
	cur, err := m.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*note.Note{}
	for cur.Next(ctx) {
		var n note.Note
		if err := cur.Decode(&n); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, cur.Err()
}

func (m *MongoRepo) SaveIfVersion(ctx context.Context, id string, expectedVersion uint64, f note.Fields) (*note.Note, error) {
	filter := bson.M{"id": id, "version": int64(expectedVersion)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated note.Note
	err := m.col.FindOneAndUpdate(ctx, filter, saveUpdate(f), opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// no match: either the note is gone or its version moved on
	var cur struct {
		Version uint64 `bson:"version"`
	}
	proj := options.FindOne().SetProjection(bson.M{"version": 1})
	if err := m.col.FindOne(ctx, bson.M{"id": id}, proj).Decode(&cur); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, note.ErrNotFound
		}
		return nil, err
	}
	return nil, &note.VersionMismatchError{ID: id, Expected: expectedVersion, Actual: cur.Version}
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return note.ErrNotFound
	}
	return nil
}

// saveUpdate builds the update document for a successful write: the new
// fields plus a version increment, applied atomically by the server.
func saveUpdate(f note.Fields) bson.M {
	tags := f.Tags
	if tags == nil {
		tags = []note.TagRef{}
	}
	return bson.M{
		"$set": bson.M{
			"title":           f.Title,
			"content":         f.Content,
			"markdownContent": f.MarkdownContent,
			"tags":            tags,
			"lastEditor":      f.Editor,
			"updatedAt":       f.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}
}
