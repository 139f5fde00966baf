// Package snapshot serializes index graphs into self-describing envelopes
// and stores them in pluggable backends.
//
// An envelope wraps the gob-encoded graph state with a fixed header
// (magic number, format version, compression codec, payload sizes) and a
// CRC32 trailer so corrupted or truncated snapshots are rejected before
// the payload is decoded.
//
// # Usage
//
//	store, err := snapshot.NewLocalStore("/var/lib/gannet/snapshots")
//	if err != nil { ... }
//
//	mgr := snapshot.NewManager(source, store, func(o *snapshot.ManagerOptions) {
//	    o.Compression = snapshot.CompressionZSTD
//	    o.Interval = 15 * time.Minute
//	    o.Retain = 5
//	})
//	defer mgr.Close()
//
//	name, err := mgr.Snapshot(ctx)
//
// Remote backends live in the s3 and minio subpackages.
package snapshot
