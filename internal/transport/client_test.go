package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticators(t *testing.T) {
	newReq := func() *http.Request {
		req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/v1/models", nil)
		return req
	}

	t.Run("bearer", func(t *testing.T) {
		req := newReq()
		BearerAuth{}.Apply(req, "sk-123")
		assert.Equal(t, "Bearer sk-123", req.Header.Get("Authorization"))
	})

	t.Run("header", func(t *testing.T) {
		req := newReq()
		HeaderAuth{Header: "x-api-key"}.Apply(req, "aa-456")
		assert.Equal(t, "aa-456", req.Header.Get("x-api-key"))
	})

	t.Run("query", func(t *testing.T) {
		req := newReq()
		QueryAuth{Param: "key"}.Apply(req, "q-789")
		assert.Equal(t, "q-789", req.URL.Query().Get("key"))
	})

	t.Run("none", func(t *testing.T) {
		req := newReq()
		NoAuth{}.Apply(req, "ignored")
		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "modelscout/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "2023-06-01", r.Header.Get("x-version"))
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4"}]}`))
	}))
	defer srv.Close()

	client := New(BearerAuth{}, "token", WithHeader("x-version", "2023-06-01"))

	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := client.GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	require.Len(t, out.Data, 1)
	assert.Equal(t, "gpt-4", out.Data[0].ID)
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := New(NoAuth{}, "")

	err := client.GetJSON(context.Background(), srv.URL, nil)
	require.Error(t, err)

	se, ok := err.(*StatusError)
	require.True(t, ok, "expected *StatusError, got %T", err)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, se.Body, "rate limited")

	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Equal(t, 0, StatusCode(context.Canceled))
}

func TestGetJSONSkipsAuthWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(BearerAuth{}, "")
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, nil))
}
