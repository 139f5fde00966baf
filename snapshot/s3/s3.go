package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gannet-io/gannet/snapshot"
)

// API captures the S3 operations the store uses. *s3.Client satisfies it.
type API interface {
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ API = (*s3.Client)(nil)

// Options configures the S3 snapshot store.
type Options struct {
	// UploadPartSize is the minimum part size for multipart uploads.
	UploadPartSize int64

	// UploadConcurrency is the number of concurrent part uploads.
	UploadConcurrency int
}

// DefaultOptions are the defaults used by NewStore.
var DefaultOptions = Options{
	UploadPartSize:    8 * 1024 * 1024,
	UploadConcurrency: 5,
}

// Store keeps snapshots as S3 objects under a key prefix.
type Store struct {
	client   API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ snapshot.Store = (*Store)(nil)

// NewStore creates a snapshot store on an existing S3 client.
// rootPrefix is prepended to all object keys (e.g. "snapshots/").
func NewStore(client API, bucket, rootPrefix string, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = opts.UploadPartSize
		u.Concurrency = opts.UploadConcurrency
	})

	return &Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   rootPrefix,
	}
}

// New creates a snapshot store using the default AWS configuration chain.
func New(ctx context.Context, bucket, rootPrefix string, optFns ...func(o *Options)) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewStore(s3.NewFromConfig(cfg), bucket, rootPrefix, optFns...), nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads a snapshot. Snapshots above the part size go through
// multipart upload.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	return nil
}

// Get downloads a snapshot.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, snapshot.ErrNotFound
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, snapshot.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	return data, nil
}

// List returns the object names under the prefix, ascending.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key("")),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			name = strings.TrimPrefix(name, "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a snapshot. S3 treats deleting a missing key as success.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}
