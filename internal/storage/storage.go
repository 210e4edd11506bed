package storage

import "context"

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the listing capability the notifier needs from an
// S3-compatible backend. Implementations issue a single listing call and
// return only the first page the backend produces.
type ObjectStorage interface {
	ListObjects(ctx context.Context, bucket string) ([]ObjectInfo, error)
}

// Keys extracts object keys, preserving backend order.
func Keys(objects []ObjectInfo) []string {
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	return keys
}
