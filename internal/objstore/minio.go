package objstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Minio implements Store on an S3-compatible server, scoped to one bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

type MinioOptions struct {
	EndPoint  string
	Port      int
	UseSSL    bool
	AccessKey string
	SecretKey string
	Bucket    string
}

// ConnectMinio builds the client and verifies the bucket is reachable with a
// probe object, the same smoke check the server has always done at boot.
func ConnectMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	endpoint := fmt.Sprintf("%s:%d", opts.EndPoint, opts.Port)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage connect failure: %w", err)
	}
	m := &Minio{client: client, bucket: opts.Bucket}
	if err := m.Put(ctx, "sample-test.txt", []byte("sample-text"), "text/plain"); err != nil {
		return nil, fmt.Errorf("object storage upload-test failure: %w", err)
	}
	log.Info().Str("module", "objstore.minio").Str("bucket", opts.Bucket).Msg("connected")
	return m, nil
}

func (m *Minio) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *Minio) Remove(ctx context.Context, keys []string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)
	for res := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}
