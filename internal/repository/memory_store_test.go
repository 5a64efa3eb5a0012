package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Create(ctx, "students", map[string]interface{}{"name": "Mina"})
	require.NoError(t, err)
	second, err := store.Create(ctx, "students", map[string]interface{}{"name": "Bishoy"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	docs, err := store.ListAll(ctx, "students")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first, docs[0].ID)
	assert.Equal(t, "Bishoy", docs[1].Fields["name"])

	require.NoError(t, store.Update(ctx, "students", first, map[string]interface{}{"phone": "01012345678"}))
	doc, err := store.Get(ctx, "students", first)
	require.NoError(t, err)
	assert.Equal(t, "Mina", doc.Fields["name"])
	assert.Equal(t, "01012345678", doc.Fields["phone"])

	require.NoError(t, store.Delete(ctx, "students", first))
	require.NoError(t, store.Delete(ctx, "students", first))
	_, err = store.Get(ctx, "students", first)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	docs, err = store.ListAll(ctx, "students")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryStoreUpdateUnknown(t *testing.T) {
	store := NewMemoryStore()
	err := store.Update(context.Background(), "students", "missing", map[string]interface{}{"name": "x"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, err := store.Create(ctx, "students", map[string]interface{}{"name": "Mina"})
	require.NoError(t, err)

	docs, err := store.ListAll(ctx, "students")
	require.NoError(t, err)
	docs[0].Fields["name"] = "changed"

	doc, err := store.Get(ctx, "students", id)
	require.NoError(t, err)
	assert.Equal(t, "Mina", doc.Fields["name"])
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().ListAll(ctx, "students")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreEmptyCollection(t *testing.T) {
	docs, err := NewMemoryStore().ListAll(context.Background(), "attendance")
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}
