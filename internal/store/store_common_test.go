package store

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSnapshot(body string) Snapshot {
	return Snapshot{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"text/plain"}, "Etag": []string{`"` + body + `"`}},
		Body:   []byte(body),
	}
}

func sortedTags(t *testing.T, s Storage) []string {
	tags, err := s.Tags(context.Background())
	require.NoError(t, err)
	sort.Strings(tags)
	return tags
}

// testStorageGeneric runs the behavior every Storage implementation must have. withStorage must provide
// a Storage that starts out empty.
func testStorageGeneric(t *testing.T, withStorage func(t *testing.T, action func(Storage))) {
	ctx := context.Background()
	key1, key2 := "GET http://localhost/index.html", "GET http://localhost/audio/car.mp3"

	t.Run("open creates an empty store", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			assert.Equal(t, "v1", st.Tag())
			n, err := st.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.Equal(t, []string{"v1"}, sortedTags(t, s))
		})
	})

	t.Run("open rejects an empty tag", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			_, err := s.Open(ctx, " ")
			assert.Equal(t, errEmptyTag, err)
		})
	})

	t.Run("get of missing key", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			_, found, err := st.Get(ctx, key1)
			require.NoError(t, err)
			assert.False(t, found)
		})
	})

	t.Run("put and get", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			require.NoError(t, st.Put(ctx, key1, makeSnapshot("hello")))

			snapshot, found, err := st.Get(ctx, key1)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, 200, snapshot.Status)
			assert.Equal(t, "hello", string(snapshot.Body))
			assert.Equal(t, "text/plain", snapshot.Header.Get("Content-Type"))

			n, err := st.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	})

	t.Run("put replaces existing entry", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			require.NoError(t, st.Put(ctx, key1, makeSnapshot("first")))
			require.NoError(t, st.Put(ctx, key1, makeSnapshot("second")))

			snapshot, found, err := st.Get(ctx, key1)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "second", string(snapshot.Body))
			n, _ := st.Len(ctx)
			assert.Equal(t, 1, n)
		})
	})

	t.Run("reopening a store keeps its entries", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			require.NoError(t, st.Put(ctx, key1, makeSnapshot("hello")))

			st2, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			_, found, err := st2.Get(ctx, key1)
			require.NoError(t, err)
			assert.True(t, found)
		})
	})

	t.Run("stores are independent", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st1, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			st2, err := s.Open(ctx, "v2")
			require.NoError(t, err)
			require.NoError(t, st1.Put(ctx, key1, makeSnapshot("one")))
			require.NoError(t, st2.Put(ctx, key2, makeSnapshot("two")))

			_, found, err := st2.Get(ctx, key1)
			require.NoError(t, err)
			assert.False(t, found)
			_, found, err = st1.Get(ctx, key2)
			require.NoError(t, err)
			assert.False(t, found)
			assert.Equal(t, []string{"v1", "v2"}, sortedTags(t, s))
		})
	})

	t.Run("delete removes only the named store", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			st1, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			st2, err := s.Open(ctx, "v2")
			require.NoError(t, err)
			require.NoError(t, st1.Put(ctx, key1, makeSnapshot("one")))
			require.NoError(t, st2.Put(ctx, key1, makeSnapshot("two")))

			deleted, err := s.Delete(ctx, "v1")
			require.NoError(t, err)
			assert.True(t, deleted)
			assert.Equal(t, []string{"v2"}, sortedTags(t, s))

			snapshot, found, err := st2.Get(ctx, key1)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "two", string(snapshot.Body))

			reopened, err := s.Open(ctx, "v1")
			require.NoError(t, err)
			n, err := reopened.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	})

	t.Run("delete of unknown store", func(t *testing.T) {
		withStorage(t, func(s Storage) {
			deleted, err := s.Delete(ctx, "nope")
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	})
}
