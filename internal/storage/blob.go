// Package storage keeps uploaded task documents outside the database.
//
// A BlobStore hands back a models.Document describing where a file landed;
// the task record only ever stores that handle. Two backends exist: the local
// uploads directory served by the API itself, and an S3 compatible bucket.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"taskmanager/internal/models"
)

type BlobStore interface {
	// Put stores r under a fresh unique name derived from originalName.
	Put(ctx context.Context, originalName string, r io.Reader, size int64, contentType string) (models.Document, error)
	Delete(ctx context.Context, doc models.Document) error
	// URL returns where a client can download doc.
	URL(ctx context.Context, doc models.Document) (string, error)
}

// uniqueName keeps the original extension so downloads open with the right viewer.
func uniqueName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return uuid.NewString() + ext
}
