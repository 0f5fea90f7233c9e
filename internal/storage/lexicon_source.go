package storage

import (
	"context"
	"fmt"
	"io"

	"ats-scorer-go/internal/ats"
)

// ObjectOpener reads objects by bucket and name.
type ObjectOpener interface {
	OpenObject(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
}

// ObjectLexiconSource reads the keyword corpus CSV from object storage.
type ObjectLexiconSource struct {
	Store  ObjectOpener
	Bucket string
	Object string
}

var _ ats.LexiconSource = ObjectLexiconSource{}

func (s ObjectLexiconSource) Key() string {
	return fmt.Sprintf("minio://%s/%s", s.Bucket, s.Object)
}

func (s ObjectLexiconSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store not configured")
	}
	return s.Store.OpenObject(ctx, s.Bucket, s.Object)
}
