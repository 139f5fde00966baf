package minio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gannet-io/gannet/hnsw"
	"github.com/gannet-io/gannet/snapshot"
	"github.com/gannet-io/gannet/testutil"
)

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-gannet"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	prefix := fmt.Sprintf("test-%d/", time.Now().UnixNano())
	store := NewStore(client, bucket, prefix)

	t.Run("PutGetListDelete", func(t *testing.T) {
		name := snapshot.Name(time.Now())
		data := []byte("hello gannet")

		require.NoError(t, store.Put(ctx, name, data))

		got, err := store.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		names, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, name)

		require.NoError(t, store.Delete(ctx, name))
		require.NoError(t, store.Delete(ctx, name))

		_, err = store.Get(ctx, name)
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})

	t.Run("ManagerRoundtrip", func(t *testing.T) {
		seed := int64(42)
		g, err := hnsw.New(func(o *hnsw.Options) {
			o.Dimension = 8
			o.RandomSeed = &seed
		})
		require.NoError(t, err)
		for i, vec := range testutil.NewRNG(7).UniformVectors(100, 8) {
			require.NoError(t, g.Insert(ctx, hnsw.ID(i), vec))
		}

		mgr := snapshot.NewManager(func() *hnsw.Graph { return g }, store, func(o *snapshot.ManagerOptions) {
			o.Compression = snapshot.CompressionZSTD
		})
		defer mgr.Close()

		name, err := mgr.Snapshot(ctx)
		require.NoError(t, err)
		defer func() { _ = store.Delete(ctx, name) }()

		restored, from, err := mgr.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, name, from)
		assert.Equal(t, g.Len(), restored.Len())
	})
}
