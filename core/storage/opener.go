package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"backup-verifier/core/reconcile"

	"github.com/minio/minio-go/v7"
)

// Opener streams objects for the reconciliation engine.
type Opener struct {
	Client Client
}

// Open implements reconcile.Opener.
func (o Opener) Open(ctx context.Context, ref reconcile.ObjectRef) (io.ReadCloser, error) {
	body, err := o.Client.GetObject(ctx, ref.Bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return body, nil
}

// Upload copies the local file at name to loc, keeping its base name.
func Upload(ctx context.Context, client Client, loc Location, name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	key := loc.Key(filepath.Base(name))
	_, err = client.PutObject(ctx, loc.Bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", name, loc.Bucket, key, err)
	}
	return scheme + loc.Bucket + "/" + key, nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
