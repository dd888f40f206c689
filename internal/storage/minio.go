package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"voicebook/internal/config"
	"voicebook/internal/model"
)

// minioStorage keeps every folder as a key prefix inside a single bucket.
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates an S3-compatible store backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &minioStorage{client: cli, bucket: cfg.Bucket}, nil
}

func (m *minioStorage) Save(ctx context.Context, folder, name string, r io.Reader) (model.StoredFile, error) {
	if err := validate(folder, name); err != nil {
		return model.StoredFile{}, err
	}
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	// size -1 lets the client stream with multipart upload
	info, err := m.client.PutObject(ctx, m.bucket, folder+"/"+name, r, -1, minio.PutObjectOptions{
		ContentType: ct,
	})
	if err != nil {
		return model.StoredFile{}, err
	}
	return model.StoredFile{Folder: folder, Name: name, Size: info.Size, ModTime: time.Now()}, nil
}

func (m *minioStorage) Open(ctx context.Context, folder, name string) (io.ReadCloser, model.StoredFile, error) {
	if err := validate(folder, name); err != nil {
		return nil, model.StoredFile{}, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, folder+"/"+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, model.StoredFile{}, objectErr(err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, model.StoredFile{}, objectErr(err)
	}
	return obj, model.StoredFile{Folder: folder, Name: name, Size: st.Size, ModTime: st.LastModified}, nil
}

func (m *minioStorage) List(ctx context.Context, folder string, exts ...string) ([]model.StoredFile, error) {
	if !model.IsFolder(folder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}
	prefix := folder + "/"
	files := make([]model.StoredFile, 0)
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", folder, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || strings.Contains(name, "/") || !matchesExt(name, exts) {
			continue
		}
		files = append(files, model.StoredFile{
			Folder:  folder,
			Name:    name,
			Size:    obj.Size,
			ModTime: obj.LastModified,
		})
	}
	sortDesc(files)
	return files, nil
}

// LocalPath downloads the object to a temp file that keeps the original extension.
func (m *minioStorage) LocalPath(ctx context.Context, folder, name string) (string, func(), error) {
	if err := validate(folder, name); err != nil {
		return "", nil, err
	}
	tmp, err := os.CreateTemp("", "voicebook-*"+filepath.Ext(name))
	if err != nil {
		return "", nil, err
	}
	path := tmp.Name()
	tmp.Close()
	cleanup := func() { _ = os.Remove(path) }

	if err := m.client.FGetObject(ctx, m.bucket, folder+"/"+name, path, minio.GetObjectOptions{}); err != nil {
		cleanup()
		return "", nil, objectErr(err)
	}
	return path, cleanup, nil
}

func (m *minioStorage) Ping(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %q does not exist", m.bucket)
	}
	return nil
}

func objectErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}
