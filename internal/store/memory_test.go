package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type row struct {
	Key   string         `bson:"key"`
	Order int            `bson:"order"`
	Data  map[string]any `bson:"data"`
}

func TestMemoryFindOne(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "a", Order: 1}))
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "b", Order: 2}))

	var got row
	found, err := m.FindOne(ctx, "c", bson.M{"key": "b"}, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", got.Key)

	found, err = m.FindOne(ctx, "c", bson.M{"key": "zzz"}, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryDottedPathAndNil(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "a", Data: map[string]any{"name": "Alice"}}))
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "b"}))

	var got row
	found, err := m.FindOne(ctx, "c", bson.M{"data.name": "Alice"}, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", got.Key)

	// nil matches both an explicit null and a missing path.
	var rows []row
	require.NoError(t, m.Find(ctx, "c", bson.M{"data": nil}, false, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Key)
}

func TestMemoryOperators(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	old := time.Now().Add(-time.Hour)
	require.NoError(t, m.InsertOne(ctx, "c", bson.M{"key": "old", "when": old}))
	require.NoError(t, m.InsertOne(ctx, "c", bson.M{"key": "new", "when": time.Now()}))

	var rows []bson.M
	require.NoError(t, m.Find(ctx, "c", bson.M{"when": bson.M{"$lt": time.Now().Add(-time.Minute)}}, false, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "old", rows[0]["key"])

	require.NoError(t, m.Find(ctx, "c", bson.M{"key": bson.M{"$ne": "old"}}, false, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "new", rows[0]["key"])

	filter := bson.M{"$and": []bson.M{
		{"key": "old"},
		{"when": bson.M{"$lt": time.Now()}},
	}}
	require.NoError(t, m.Find(ctx, "c", filter, false, &rows))
	assert.Len(t, rows, 1)
}

func TestMemoryFindSortByOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "third", Order: 30}))
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "first", Order: 10}))
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "second", Order: 20}))

	var rows []row
	require.NoError(t, m.Find(ctx, "c", bson.M{}, true, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "first", rows[0].Key)
	assert.Equal(t, "second", rows[1].Key)
	assert.Equal(t, "third", rows[2].Key)
}

func TestMemoryReplaceOne(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertOne(ctx, "c", row{Key: "a", Order: 1}))
	require.NoError(t, m.ReplaceOne(ctx, "c", bson.M{"key": "a"}, row{Key: "a", Order: 99}))

	var got row
	found, err := m.FindOne(ctx, "c", bson.M{"key": "a"}, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 99, got.Order)

	// No match changes nothing.
	require.NoError(t, m.ReplaceOne(ctx, "c", bson.M{"key": "zzz"}, row{Key: "zzz"}))
	found, err = m.FindOne(ctx, "c", bson.M{"key": "zzz"}, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryDeleteAndDrop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, m.InsertOne(ctx, "c", row{Key: k}))
	}
	require.NoError(t, m.DeleteOne(ctx, "c", bson.M{"key": "b"}))

	n, err := m.DeleteMany(ctx, "c", bson.M{"key": bson.M{"$ne": "a"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var rows []row
	require.NoError(t, m.Find(ctx, "c", bson.M{}, false, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Key)

	require.NoError(t, m.Drop(ctx, "c"))
	assert.Empty(t, m.Collections())
}
