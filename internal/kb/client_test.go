package kb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchArticleSections_JSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{"sections":["a"]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	raw, err := c.SearchArticleSections(context.Background(), "Ileitis terminalis")
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":"1","result":{"sections":["a"]}}`, string(raw))
}

func TestSearchArticleSections_SSEBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("event: message\ndata: {\"result\":\ndata: {\"ok\":true}}\n\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	raw, err := c.SearchArticleSections(context.Background(), "Appendizitis")
	require.NoError(t, err)
	require.JSONEq(t, `{"result":{"ok":true}}`, string(raw))
}

func TestSearchArticleSections_InvalidSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: not json\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	_, err := c.SearchArticleSections(context.Background(), "x")
	require.Error(t, err)
}

func TestSearchArticleSections_Disabled(t *testing.T) {
	c := NewClient("", "")
	require.False(t, c.Enabled())
	_, err := c.SearchArticleSections(context.Background(), "x")
	require.Error(t, err)
}

func TestDigest_Stable(t *testing.T) {
	a := Digest([]byte(`{"x":1}`), "Morbus Crohn", 24)
	b := Digest([]byte(`{"x":1}`), "Morbus Crohn", 24)
	c := Digest([]byte(`{"x":1}`), "Morbus Crohn", 25)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
