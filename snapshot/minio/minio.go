// Package minio stores snapshots in MinIO or any S3-compatible object
// store reachable through the MinIO client.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/gannet-io/gannet/snapshot"
)

// Store keeps snapshots as objects in a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ snapshot.Store = (*Store)(nil)

// NewStore creates a snapshot store on an existing MinIO client.
// rootPrefix is prepended to all object keys (e.g. "snapshots/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads a snapshot.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// Get downloads a snapshot.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy: a missing key surfaces on the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, snapshot.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns the object names under the prefix, ascending.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a snapshot. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil
		}
		return err
	}
	return nil
}
