// Package storage abstracts the external object store that holds post
// and profile images.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tidepool/internal/models"
)

// Object is a stored blob: an opaque store id plus the public URL
// clients fetch it from.
type Object struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ObjectStore is the upload/delete surface of the media service.
// Deletes are best-effort at call sites; a dangling object is preferable
// to a failed user action.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (Object, error)
	Delete(ctx context.Context, id string) error
}

// HTTPStore talks to the media service over its REST API.
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPStore returns a store for the media service at baseURL.
func NewHTTPStore(baseURL, apiKey string) *HTTPStore {
	return &HTTPStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type uploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Put uploads data under name and returns the stored object.
func (s *HTTPStore) Put(ctx context.Context, name, contentType string, data []byte) (Object, error) {
	url := fmt.Sprintf("%s/objects?name=%s", s.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Object{}, err
	}
	req.Header.Set("Content-Type", contentType)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Object{}, models.NewUpstreamError("media store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Object{}, models.NewUpstreamError("media store",
			fmt.Errorf("upload returned %d: %s", resp.StatusCode, body))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Object{}, models.NewUpstreamError("media store", err)
	}
	return Object{ID: out.ID, URL: out.URL}, nil
}

// Delete removes the object with the given id. A 404 from the store is
// treated as success.
func (s *HTTPStore) Delete(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/objects/%s", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.NewUpstreamError("media store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return models.NewUpstreamError("media store",
			fmt.Errorf("delete returned %d", resp.StatusCode))
	}
	return nil
}
