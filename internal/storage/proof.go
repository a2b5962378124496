// Package storage is the object-storage collaborator for payment
// proofs. The core only records the reference it returns.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type ProofStore interface {
	Save(ctx context.Context, orderNumber string, r io.Reader, contentType string) (string, error)
}

// DiskStore keeps proofs on the local filesystem under uuid-derived
// names. Swappable for a bucket-backed implementation without touching
// the core.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(ctx context.Context, orderNumber string, r io.Reader, contentType string) (string, error) {
	ext := ".bin"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	}

	name := fmt.Sprintf("%s-%s%s", orderNumber, uuid.NewString(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", err
	}
	return name, nil
}
