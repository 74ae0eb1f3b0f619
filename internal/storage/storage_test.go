package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tidepool/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStore_Put(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "image/webp", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"obj-1","url":"https://cdn.example.com/obj-1"}`))
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "test-key")
	obj, err := store.Put(context.Background(), "avatar.webp", "image/webp", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "obj-1", obj.ID)
	assert.Equal(t, "https://cdn.example.com/obj-1", obj.URL)
}

func TestHTTPStore_PutUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "")
	_, err := store.Put(context.Background(), "avatar.webp", "image/webp", []byte("data"))
	require.Error(t, err)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeUpstream, appErr.Code)
}

func TestHTTPStore_DeleteTolerates404(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "")
	assert.NoError(t, store.Delete(context.Background(), "gone"))
}
