package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SupabaseStore talks to the Supabase Storage REST API for one bucket.
type SupabaseStore struct {
	client  *resty.Client
	baseURL string
	bucket  string
}

// NewSupabaseStore builds a client authenticated with the service key.
func NewSupabaseStore(projectURL, serviceKey, bucket string) *SupabaseStore {
	base := strings.TrimRight(projectURL, "/")
	client := resty.New().
		SetBaseURL(base+"/storage/v1").
		SetAuthToken(serviceKey).
		SetHeader("apikey", serviceKey).
		SetTimeout(30 * time.Second)
	return &SupabaseStore{client: client, baseURL: base, bucket: bucket}
}

// storageError is the body Supabase returns on failure.
type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func (s *SupabaseStore) objectURL(objectPath string) string {
	return "/object/" + s.bucket + "/" + objectPath
}

func responseError(resp *resty.Response, op string) error {
	var body storageError
	if e, ok := resp.Error().(*storageError); ok && e != nil {
		body = *e
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound || body.StatusCode == "404":
		return ErrNotFound
	case resp.StatusCode() == http.StatusConflict || body.StatusCode == "409":
		return ErrExists
	}
	msg := body.Message
	if msg == "" {
		msg = resp.Status()
	}
	return fmt.Errorf("storage %s: %s", op, msg)
}

func (s *SupabaseStore) Put(ctx context.Context, objectPath, contentType string, content io.Reader) (*Object, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("Cache-Control", "max-age=3600").
		SetHeader("x-upsert", "false").
		SetBody(data).
		SetError(&storageError{}).
		Post(s.objectURL(p))
	if err != nil {
		return nil, fmt.Errorf("storage upload: %w", err)
	}
	if resp.IsError() {
		return nil, responseError(resp, "upload")
	}
	return &Object{
		Path:        p,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        hash,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *SupabaseStore) Get(ctx context.Context, objectPath string) (io.ReadCloser, *Object, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(s.objectURL(objectPath))
	if err != nil {
		return nil, nil, fmt.Errorf("storage download: %w", err)
	}
	raw := resp.RawBody()
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusBadRequest {
		raw.Close()
		return nil, nil, ErrNotFound
	}
	if resp.StatusCode() >= 300 {
		raw.Close()
		return nil, nil, fmt.Errorf("storage download: %s", resp.Status())
	}
	return raw, &Object{
		Path:        objectPath,
		ContentType: resp.Header().Get("Content-Type"),
		Size:        resp.RawResponse.ContentLength,
	}, nil
}

// Delete removes one object. Supabase answers 200 with an empty list when
// nothing matched.
func (s *SupabaseStore) Delete(ctx context.Context, objectPath string) error {
	var removed []map[string]interface{}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string][]string{"prefixes": {objectPath}}).
		SetResult(&removed).
		SetError(&storageError{}).
		Delete("/object/" + s.bucket)
	if err != nil {
		return fmt.Errorf("storage delete: %w", err)
	}
	if resp.IsError() {
		return responseError(resp, "delete")
	}
	if len(removed) == 0 {
		return ErrNotFound
	}
	return nil
}

// URL is the bucket's public object URL.
func (s *SupabaseStore) URL(objectPath string) string {
	return s.baseURL + "/storage/v1/object/public/" + s.bucket + "/" + objectPath
}
