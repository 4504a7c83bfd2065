package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderIndexLinksAssets(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.RenderIndex(&buf, IndexData{Lang: "en", T: map[string]string{}, MaxUploadMB: 50}))
	html := buf.String()
	assert.Contains(t, html, `<link rel="manifest" href="/static/manifest.json">`)
	assert.Contains(t, html, `serviceWorker.register("/static/sw.js"`)
}

func TestStaticAssets(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	h := w.Static()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/static/sw.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Service-Worker-Allowed"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "CACHE_NAME")

	rec = get("/static/manifest.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Service-Worker-Allowed"))
	var manifest struct {
		StartURL string `json:"start_url"`
		Icons    []struct {
			Src string `json:"src"`
		} `json:"icons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifest))
	assert.Equal(t, "/", manifest.StartURL)
	require.NotEmpty(t, manifest.Icons)

	rec = get(manifest.Icons[0].Src)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, get("/static/missing.js").Code)
}
