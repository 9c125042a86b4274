package tags

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gogotex/gonotes/internal/note"
)

// MongoResolver resolves tags with an upsert keyed on the unique name.
type MongoResolver struct {
	col *mongo.Collection
}

// NewMongoResolver ensures the unique index on "name" and returns the resolver.
func NewMongoResolver(ctx context.Context, col *mongo.Collection) (*MongoResolver, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create tags index: %w", err)
	}
	return &MongoResolver{col: col}, nil
}

func (r *MongoResolver) ResolveOrCreate(ctx context.Context, name string) (note.TagRef, error) {
	if name == "" {
		return note.TagRef{}, ErrEmptyName
	}
	filter := bson.M{"name": name}
	upd := bson.M{"$setOnInsert": bson.M{
		"id":        newTagID(),
		"name":      name,
		"createdAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var t Tag
	err := r.col.FindOneAndUpdate(ctx, filter, upd, opts).Decode(&t)
	if mongo.IsDuplicateKeyError(err) {
		// lost an insert race on the unique index; the winner's tag is there now
		err = r.col.FindOne(ctx, filter).Decode(&t)
	}
	if err != nil {
		return note.TagRef{}, fmt.Errorf("resolve tag %q: %w", name, err)
	}
	return t.Ref(), nil
}
