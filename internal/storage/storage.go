// Package storage is the File Store: flat folders of files whose names carry all metadata.
// Every call goes to the backend; nothing is cached in memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"voicebook/internal/model"
)

var (
	ErrNotFound      = errors.New("file not found")
	ErrInvalidFolder = errors.New("invalid folder")
	ErrInvalidName   = errors.New("invalid file name")
)

// Storage is implemented by the local-disk and MinIO backends.
type Storage interface {
	// Save writes the content under folder/name, overwriting any existing file.
	Save(ctx context.Context, folder, name string, r io.Reader) (model.StoredFile, error)
	// Open returns a reader for folder/name or ErrNotFound.
	Open(ctx context.Context, folder, name string) (io.ReadCloser, model.StoredFile, error)
	// List returns the files in folder, most recent (lexically greatest) first.
	// When exts is non-empty only names whose extension matches (case-insensitive) are returned.
	List(ctx context.Context, folder string, exts ...string) ([]model.StoredFile, error)
	// LocalPath returns a path on local disk holding the file's content. The returned
	// cleanup func must be called once the path is no longer needed.
	LocalPath(ctx context.Context, folder, name string) (string, func(), error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Read loads the whole file into memory.
func Read(ctx context.Context, s Storage, folder, name string) ([]byte, error) {
	rc, _, err := s.Open(ctx, folder, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Extension returns the lower-cased text after the final '.', and false when there is none.
func Extension(name string) (string, bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", false
	}
	return strings.ToLower(name[i+1:]), true
}

func validate(folder, name string) error {
	if !model.IsFolder(folder) {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func matchesExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext, ok := Extension(name)
	if !ok {
		return false
	}
	for _, want := range exts {
		if strings.EqualFold(strings.TrimPrefix(want, "."), ext) {
			return true
		}
	}
	return false
}

func sortDesc(files []model.StoredFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
}
