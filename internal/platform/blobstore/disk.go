package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// DiskStore keeps objects as files under a root directory.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create file directory: %w", err)
	}
	return &DiskStore{root: root, baseURL: baseURL}, nil
}

func (s *DiskStore) full(objectPath string) (string, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(p)), nil
}

func (s *DiskStore) Put(_ context.Context, objectPath, contentType string, content io.Reader) (*Object, error) {
	full, err := s.full(objectPath)
	if err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return nil, fmt.Errorf("create object directory: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("create object: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(full)
		return nil, fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close object: %w", err)
	}
	p, _ := CleanPath(objectPath)
	return &Object{
		Path:        p,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hash,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Get guesses the content type from the extension; the disk keeps no
// metadata.
func (s *DiskStore) Get(_ context.Context, objectPath string) (io.ReadCloser, *Object, error) {
	full, err := s.full(objectPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}
	return f, &Object{
		Path:        objectPath,
		ContentType: mime.TypeByExtension(filepath.Ext(full)),
		Size:        info.Size(),
		CreatedAt:   info.ModTime().UTC(),
	}, nil
}

func (s *DiskStore) Delete(_ context.Context, objectPath string) error {
	full, err := s.full(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *DiskStore) URL(objectPath string) string {
	return servedURL(s.baseURL, objectPath)
}
