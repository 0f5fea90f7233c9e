package corpus

import (
	"context"
	"fmt"
	"strings"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/storage"
)

// Deps carries what the non-file sources need. Objects may be nil when
// MinIO is not configured.
type Deps struct {
	S3       config.S3Config
	Postgres config.PostgresConfig
	Objects  storage.ObjectOpener
}

// ResolveSource maps a lexicon URI to a source:
//
//	s3://bucket/key     S3 object
//	minio://bucket/key  MinIO object
//	postgres:[table]    table in the configured database
//	anything else       local CSV path
//
// The returned close function releases connections the source holds.
func ResolveSource(ctx context.Context, uri string, deps Deps) (ats.LexiconSource, func(), error) {
	noop := func() {}
	switch {
	case strings.HasPrefix(uri, "s3://"):
		bucket, key, err := splitBucketURI(uri, "s3://")
		if err != nil {
			return nil, noop, err
		}
		client, err := NewS3Client(ctx, deps.S3)
		if err != nil {
			return nil, noop, err
		}
		return S3Source{Client: client, Bucket: bucket, Object: key}, noop, nil

	case strings.HasPrefix(uri, "minio://"):
		bucket, key, err := splitBucketURI(uri, "minio://")
		if err != nil {
			return nil, noop, err
		}
		if deps.Objects == nil {
			return nil, noop, fmt.Errorf("lexicon source %s: minio is not configured", uri)
		}
		return storage.ObjectLexiconSource{Store: deps.Objects, Bucket: bucket, Object: key}, noop, nil

	case strings.HasPrefix(uri, "postgres:"):
		pg := deps.Postgres
		if table := strings.TrimPrefix(uri, "postgres:"); table != "" {
			pg.Table = table
		}
		if pg.DSN == "" {
			return nil, noop, fmt.Errorf("lexicon source %s: postgres dsn is empty", uri)
		}
		pool, err := NewPostgresPool(ctx, pg.DSN)
		if err != nil {
			return nil, noop, err
		}
		src := PostgresSource{
			DB:             pool,
			Table:          pg.Table,
			FileColumn:     pg.FileColumn,
			KeywordsColumn: pg.KeywordsColumn,
		}
		return src, pool.Close, nil

	default:
		return ats.FileSource(strings.TrimPrefix(uri, "file://")), noop, nil
	}
}

func splitBucketURI(uri, scheme string) (string, string, error) {
	rest := strings.TrimPrefix(uri, scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid lexicon uri %q: want %sbucket/key", uri, scheme)
	}
	return bucket, key, nil
}
