package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gannet-io/gannet/snapshot"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DDBClient = (*dynamodb.Client)(nil)

// ErrConcurrentCommit is returned when another writer committed a
// snapshot version first.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

// Catalog records committed snapshots in a DynamoDB table. It provides
// the atomic compare-and-swap semantics S3 lacks, so multiple writers
// sharing a bucket agree on the latest snapshot. Rows form an
// append-only commit log; superseded versions are kept.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name gannet-snapshots \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type Catalog struct {
	client    DDBClient
	tableName string
	baseURI   string
}

// NewCatalog creates a catalog on an existing DynamoDB client.
// The baseURI should be "s3://bucket/prefix" format used as partition key.
func NewCatalog(client DDBClient, tableName, baseURI string) *Catalog {
	return &Catalog{
		client:    client,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Commit records name as the next snapshot version. Returns
// ErrConcurrentCommit if another writer claimed the version first.
func (c *Catalog) Commit(ctx context.Context, name string) error {
	version, _, err := c.latestVersion(ctx)
	if err != nil {
		return err
	}
	return c.commitVersion(ctx, name, version+1)
}

// Latest returns the most recently committed snapshot name.
// Returns snapshot.ErrNotFound when nothing has been committed.
func (c *Catalog) Latest(ctx context.Context) (string, error) {
	version, name, err := c.latestVersion(ctx)
	if err != nil {
		return "", err
	}
	if version == 0 {
		return "", snapshot.ErrNotFound
	}
	return name, nil
}

func (c *Catalog) commitVersion(ctx context.Context, name string, version uint64) error {
	// Conditional put: only succeed if this version doesn't exist yet
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":      &types.AttributeValueMemberS{Value: c.baseURI},
			"version":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", version)},
			"snapshot_name": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit snapshot version: %w", err)
	}
	return nil
}

// latestVersion queries the newest committed version. Version 0 means
// the catalog is empty.
func (c *Catalog) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := c.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: c.baseURI},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query snapshot catalog: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in catalog")
	}
	nameAttr, ok := item["snapshot_name"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot_name attribute in catalog")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, nameAttr.Value, nil
}

// CatalogStore pairs an S3 store with a catalog. Put commits each stored
// snapshot, and Latest resolves through the catalog instead of listing.
type CatalogStore struct {
	*Store
	catalog *Catalog
}

var (
	_ snapshot.Store    = (*CatalogStore)(nil)
	_ snapshot.Latester = (*CatalogStore)(nil)
)

// NewCatalogStore wraps an S3 store with a DynamoDB catalog.
func NewCatalogStore(store *Store, catalog *Catalog) *CatalogStore {
	return &CatalogStore{
		Store:   store,
		catalog: catalog,
	}
}

// Put uploads the snapshot and commits it as the latest version.
func (s *CatalogStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.Store.Put(ctx, name, data); err != nil {
		return err
	}
	return s.catalog.Commit(ctx, name)
}

// Latest implements snapshot.Latester.
func (s *CatalogStore) Latest(ctx context.Context) (string, error) {
	return s.catalog.Latest(ctx)
}
