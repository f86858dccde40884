package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chunk.js":
			w.Header().Set("Content-Type", "application/javascript")
			w.Header().Set("X-Seen-Token", r.Header.Get("X-Token"))
			w.Header().Set("X-Seen-Agent", r.UserAgent())
			_, _ = w.Write([]byte(`var a=["Dirt","Stone"];`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{
		UserAgent:     "bloxdcheck-test",
		CustomHeaders: []string{"X-Token: abc", "malformed"},
	})
	defer f.Close()
	assert.Equal(t, "http", f.Name())

	t.Run("success", func(t *testing.T) {
		resp, err := f.Fetch(srv.URL + "/chunk.js")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `var a=["Dirt","Stone"];`, resp.Text())
		assert.Equal(t, "application/javascript", resp.ContentType)
		assert.Equal(t, "abc", resp.Headers.Get("X-Seen-Token"))
		assert.Equal(t, "bloxdcheck-test", resp.Headers.Get("X-Seen-Agent"))
		assert.Equal(t, "http", resp.FetcherUsed)
	})

	t.Run("headers on every fetch", func(t *testing.T) {
		resp, err := f.Fetch(srv.URL + "/chunk.js")
		require.NoError(t, err)
		assert.Equal(t, "abc", resp.Headers.Get("X-Seen-Token"))
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		resp, err := f.Fetch(srv.URL + "/missing.js")
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
