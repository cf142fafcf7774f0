package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"taskmanager/internal/models"
)

// DiskStore writes documents into a local directory that the API serves
// statically under URLPrefix.
type DiskStore struct {
	dir       string
	urlPrefix string
}

const DefaultURLPrefix = "/uploads"

func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Put(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return models.Document{}, err
	}
	name := uniqueName(originalName)
	fullPath := filepath.Join(s.dir, name)

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return models.Document{}, fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(fullPath)
		return models.Document{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		return models.Document{}, fmt.Errorf("close %s: %w", name, err)
	}
	return models.Document{Filename: name, Path: fullPath}, nil
}

func (s *DiskStore) Delete(_ context.Context, doc models.Document) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(doc.Filename)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", doc.Filename, err)
	}
	return nil
}

func (s *DiskStore) URL(_ context.Context, doc models.Document) (string, error) {
	return path.Join(s.urlPrefix, doc.Filename), nil
}
