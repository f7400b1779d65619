// Package blobstore stores patient file contents under opaque paths. It
// defines the Store interface, an in-memory implementation for tests and
// local mode, a directory-backed store, and a Supabase Storage client. File
// metadata lives with the owning domain; this package only knows bytes.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrNotFound      = errors.New("object not found")
	ErrExists        = errors.New("object already exists")
	ErrFileTooLarge  = errors.New("file exceeds maximum allowed size")
	ErrInvalidPath   = errors.New("invalid object path")
	ErrEmptyFileName = errors.New("file name is required")
)

// MaxFileSize is the largest accepted upload (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// Object describes stored content.
type Object struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the contract for file content backends. Put never overwrites.
type Store interface {
	Put(ctx context.Context, objectPath, contentType string, content io.Reader) (*Object, error)
	Get(ctx context.Context, objectPath string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, objectPath string) error
	// URL returns where a browser can fetch the object.
	URL(objectPath string) string
}

// CleanPath rejects absolute and escaping paths and normalizes the rest.
func CleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// readLimited reads content up to MaxFileSize and fills size and hash.
func readLimited(content io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}
	return data, fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedObject struct {
	object  Object
	content []byte
}

// MemoryStore keeps objects in a map. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
	baseURL string
}

// NewMemoryStore returns an empty store whose URLs are rooted at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]*storedObject), baseURL: baseURL}
}

func (s *MemoryStore) Put(_ context.Context, objectPath, contentType string, content io.Reader) (*Object, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[p]; ok {
		return nil, ErrExists
	}
	obj := Object{
		Path:        p,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hash,
		CreatedAt:   time.Now().UTC(),
	}
	s.objects[p] = &storedObject{object: obj, content: data}
	return &obj, nil
}

func (s *MemoryStore) Get(_ context.Context, objectPath string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	o, ok := s.objects[objectPath]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	obj := o.object
	return io.NopCloser(bytes.NewReader(o.content)), &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectPath]; !ok {
		return ErrNotFound
	}
	delete(s.objects, objectPath)
	return nil
}

func (s *MemoryStore) URL(objectPath string) string {
	return servedURL(s.baseURL, objectPath)
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func servedURL(baseURL, objectPath string) string {
	return strings.TrimRight(baseURL, "/") + "/files/" + objectPath
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// Handler serves object content for stores that have no public endpoint of
// their own (memory and disk).
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts GET /files/* on the supplied group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/files/*", h.handleDownload)
}

func (h *Handler) handleDownload(c echo.Context) error {
	p, err := CleanPath(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rc, obj, err := h.store.Get(c.Request().Context(), p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set("Cache-Control", "max-age=3600")
	return c.Stream(http.StatusOK, contentType, rc)
}
