// Package store is the narrow document-database contract the engine runs on:
// find/insert/update/delete by filter plus collection drop. Filters are bson
// maps so the mongo backend can pass them through untouched; the memory
// backend evaluates the subset the engine actually uses.
//
// There is deliberately no document-level locking and no transactions; every
// mutation is read-modify-write and two concurrent writers to the same
// document race with last-write-wins.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is a handle on one logical database holding many named collections.
type Store interface {
	// FindOne decodes the first match into out and reports whether one was
	// found. out must be a non-nil pointer.
	FindOne(ctx context.Context, col string, filter bson.M, out any) (bool, error)

	// Find decodes every match into out (a pointer to a slice). When
	// sortByOrder is set, results come back ordered by the "order" field
	// ascending; otherwise insertion order.
	Find(ctx context.Context, col string, filter bson.M, sortByOrder bool, out any) error

	InsertOne(ctx context.Context, col string, doc any) error
	InsertMany(ctx context.Context, col string, docs []any) error

	// ReplaceOne replaces the first match wholesale (no partial update
	// operators). A missing match is not an error; zero documents change.
	ReplaceOne(ctx context.Context, col string, filter bson.M, doc any) error

	DeleteOne(ctx context.Context, col string, filter bson.M) error
	DeleteMany(ctx context.Context, col string, filter bson.M) (int64, error)

	// Drop removes the collection and everything in it.
	Drop(ctx context.Context, col string) error
}
