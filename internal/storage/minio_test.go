package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicebook/internal/model"
)

const testBucket = "voicebook"

// newTestMinIO points a minioStorage at an httptest server standing in for S3.
func newTestMinIO(t *testing.T, h http.HandlerFunc) *minioStorage {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cli, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &minioStorage{client: cli, bucket: testBucket}
}

func listXML(prefix string, keys ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, `<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`,
		testBucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>2024-01-01T12:00:00.000Z</LastModified><ETag>"d41d8cd98f00b204e9800998ecf8427e"</ETag><Size>4</Size><StorageClass>STANDARD</StorageClass></Contents>`, k)
	}
	b.WriteString(`</ListBucketResult>`)
	return b.String()
}

func TestObjectErr(t *testing.T) {
	assert.ErrorIs(t, objectErr(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}), ErrNotFound)

	denied := minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	assert.Equal(t, denied, objectErr(denied))

	plain := errors.New("connection reset")
	assert.Same(t, plain, objectErr(plain))
}

func TestMinIOList(t *testing.T) {
	var gotPrefix string
	s := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		gotPrefix = r.URL.Query().Get("prefix")
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(listXML("uploads/",
			"uploads/20240101-120000.wav",
			"uploads/20240102-080000.WAV",
			"uploads/20240102-080000.WAV.txt",
			"uploads/nested/20240103-000000.wav",
			"uploads/notes.mp3",
		)))
	})

	files, err := s.List(context.Background(), model.FolderUploads, "wav")

	require.NoError(t, err)
	assert.Equal(t, "uploads/", gotPrefix)
	require.Len(t, files, 2)
	assert.Equal(t, "20240102-080000.WAV", files[0].Name)
	assert.Equal(t, "20240101-120000.wav", files[1].Name)
	assert.Equal(t, model.FolderUploads, files[0].Folder)
	assert.EqualValues(t, 4, files[0].Size)
}

func TestMinIOListRejectsUnknownFolder(t *testing.T) {
	s := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	_, err := s.List(context.Background(), "tts")

	assert.ErrorIs(t, err, ErrInvalidFolder)
}

func TestMinIOLocalPathMissingObject(t *testing.T) {
	s := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	path, cleanup, err := s.LocalPath(context.Background(), model.FolderBooks, "20240101-110000.pdf")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, path)
	assert.Nil(t, cleanup)
}

func TestMinIOLocalPathRejectsTraversal(t *testing.T) {
	s := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	_, _, err := s.LocalPath(context.Background(), model.FolderBooks, "../secret.pdf")

	assert.ErrorIs(t, err, ErrInvalidName)
}
