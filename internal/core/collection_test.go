package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestSplitCollectionName(t *testing.T) {
	prefix, suffix := SplitCollectionName("abc-DATA-user-list")
	assert.Equal(t, "abc", prefix)
	assert.Equal(t, "user-list", suffix)

	// Splits at the first separator only.
	prefix, suffix = SplitCollectionName("abc-DATA-x-DATA-y")
	assert.Equal(t, "abc", prefix)
	assert.Equal(t, "x-DATA-y", suffix)

	prefix, suffix = SplitCollectionName("rooms-secret")
	assert.Equal(t, "rooms-secret", prefix)
	assert.Empty(t, suffix)

	assert.Equal(t, "abc-DATA-user-list", PhysicalName("abc", "user-list"))
}

func TestResolveCollectionByConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")

	_, err := env.core.resolveCollection(ctx, ByConnection("s1", "chat-list"), false)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "not yet logged in", appErr.Message)

	env.joinRoom(t, "s1", 1, "Alice")
	prefix := env.tenantPrefix(t, "s1")
	name, err := env.core.resolveCollection(ctx, ByConnection("s1", "chat-list"), false)
	require.NoError(t, err)
	assert.Equal(t, PhysicalName(prefix, "chat-list"), name)
}

func TestCatalogRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ref := BySuffix("tenant", "chat-list")
	_, err := env.core.resolveCollection(ctx, ref, true)
	require.NoError(t, err)
	_, err = env.core.resolveCollection(ctx, ref, true)
	require.NoError(t, err)

	catalog := PhysicalName("tenant", catalogSuffix)
	var rows []bson.M
	require.NoError(t, env.mem.Find(ctx, catalog, bson.M{}, false, &rows))
	require.Len(t, rows, 1, "re-registration does not duplicate")
	assert.Equal(t, "chat-list", rows[0]["suffix"])

	// The catalog never lists itself.
	_, err = env.core.resolveCollection(ctx, BySuffix("tenant", catalogSuffix), true)
	require.NoError(t, err)
	require.NoError(t, env.mem.Find(ctx, catalog, bson.M{}, false, &rows))
	assert.Len(t, rows, 1)

	cols, err := env.core.tenantCollections(ctx, "tenant")
	require.NoError(t, err)
	assert.Equal(t, []string{
		PhysicalName("tenant", "chat-list"),
		catalog,
	}, cols)

	// Reads never register anything.
	_, err = env.core.resolveCollection(ctx, BySuffix("tenant", "scene-list"), false)
	require.NoError(t, err)
	require.NoError(t, env.mem.Find(ctx, catalog, bson.M{}, false, &rows))
	assert.Len(t, rows, 1)
}
