package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"voicebook/internal/model"
)

const tempPrefix = ".upload-"

// localStorage keeps each folder as a directory under root.
type localStorage struct {
	root string
}

// NewLocal creates the folder directories under root if missing.
func NewLocal(root string) (Storage, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	for _, folder := range model.Folders {
		if err := os.MkdirAll(filepath.Join(root, folder), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", folder, err)
		}
	}
	return &localStorage{root: root}, nil
}

func (s *localStorage) Save(ctx context.Context, folder, name string, r io.Reader) (model.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return model.StoredFile{}, err
	}
	if err := validate(folder, name); err != nil {
		return model.StoredFile{}, err
	}
	dir := filepath.Join(s.root, folder)
	tmp, err := os.CreateTemp(dir, tempPrefix+"*.tmp")
	if err != nil {
		return model.StoredFile{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return model.StoredFile{}, err
	}
	if err := tmp.Close(); err != nil {
		return model.StoredFile{}, err
	}
	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return model.StoredFile{}, err
	}
	return stat(folder, name, path)
}

func (s *localStorage) Open(ctx context.Context, folder, name string) (io.ReadCloser, model.StoredFile, error) {
	if err := validate(folder, name); err != nil {
		return nil, model.StoredFile{}, err
	}
	path := filepath.Join(s.root, folder, name)
	info, err := stat(folder, name, path)
	if err != nil {
		return nil, model.StoredFile{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, model.StoredFile{}, notFound(err)
	}
	return f, info, nil
}

func (s *localStorage) List(ctx context.Context, folder string, exts ...string) ([]model.StoredFile, error) {
	if !model.IsFolder(folder) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}
	entries, err := os.ReadDir(filepath.Join(s.root, folder))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", folder, err)
	}
	files := make([]model.StoredFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) || !matchesExt(e.Name(), exts) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, model.StoredFile{
			Folder:  folder,
			Name:    e.Name(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sortDesc(files)
	return files, nil
}

func (s *localStorage) LocalPath(ctx context.Context, folder, name string) (string, func(), error) {
	if err := validate(folder, name); err != nil {
		return "", nil, err
	}
	path := filepath.Join(s.root, folder, name)
	if _, err := stat(folder, name, path); err != nil {
		return "", nil, err
	}
	return path, func() {}, nil
}

func (s *localStorage) Ping(ctx context.Context) error {
	for _, folder := range model.Folders {
		if _, err := os.Stat(filepath.Join(s.root, folder)); err != nil {
			return fmt.Errorf("stat %s: %w", folder, err)
		}
	}
	return nil
}

func stat(folder, name, path string) (model.StoredFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return model.StoredFile{}, notFound(err)
	}
	if fi.IsDir() {
		return model.StoredFile{}, ErrNotFound
	}
	return model.StoredFile{Folder: folder, Name: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
