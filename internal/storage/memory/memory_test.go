package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/splitledger/internal/storage"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, storage.KindGroup, mustStruct(t, map[string]any{"name": "Roommates"}))
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "created ids are uuids")

	doc, err := s.Get(ctx, storage.KindGroup, id)
	require.NoError(t, err)
	assert.Equal(t, "Roommates", doc.Fields["name"].GetStringValue())

	// Same id under another kind is a different document.
	_, err = s.Get(ctx, storage.KindUser, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx, storage.KindGroup, id))
	_, err = s.Get(ctx, storage.KindGroup, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, storage.KindGroup, id), storage.ErrNotFound)
}

func TestStore_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := mustStruct(t, map[string]any{"name": "before"})
	require.NoError(t, s.Set(ctx, storage.KindUser, "u1", in))
	in.Fields["name"] = structpb.NewStringValue("mutated after set")

	out, err := s.Get(ctx, storage.KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, "before", out.Fields["name"].GetStringValue())

	out.Fields["name"] = structpb.NewStringValue("mutated after get")
	again, err := s.Get(ctx, storage.KindUser, "u1")
	require.NoError(t, err)
	assert.Equal(t, "before", again.Fields["name"].GetStringValue())
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := New()

	var seen []*structpb.Struct
	cancel := s.Subscribe(storage.KindUser, "u1", func(doc *structpb.Struct) {
		seen = append(seen, doc)
	})

	require.NoError(t, s.Set(ctx, storage.KindUser, "u1", mustStruct(t, map[string]any{"v": 1})))
	require.NoError(t, s.Set(ctx, storage.KindUser, "u2", mustStruct(t, map[string]any{"v": 2})))
	require.NoError(t, s.Delete(ctx, storage.KindUser, "u1"))

	require.Len(t, seen, 2, "only writes to u1 are delivered")
	assert.Equal(t, float64(1), seen[0].Fields["v"].GetNumberValue())
	assert.Nil(t, seen[1], "deletion is delivered as nil")

	cancel()
	require.NoError(t, s.Set(ctx, storage.KindUser, "u1", mustStruct(t, map[string]any{"v": 3})))
	assert.Len(t, seen, 2)
}

func TestStore_Len(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, storage.KindTransaction, mustStruct(t, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, s.Len(storage.KindTransaction))
	assert.Equal(t, 0, s.Len(storage.KindUser))
}
