// Package s3 stores snapshots in Amazon S3, optionally paired with a
// DynamoDB catalog that tracks the latest committed snapshot so multiple
// writers sharing a bucket can coordinate.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", "gannet/snapshots/")
//	if err != nil { ... }
//
//	mgr := snapshot.NewManager(source, store)
package s3
