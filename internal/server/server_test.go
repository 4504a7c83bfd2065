package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/sheetsplit/internal/config"
	"github.com/local/sheetsplit/internal/pdfdoc/pdfdoctest"
	"github.com/local/sheetsplit/internal/queue"
	"github.com/local/sheetsplit/internal/storage"
	"github.com/local/sheetsplit/internal/store"
)

type fakeJobs struct {
	mu        sync.Mutex
	enqueued  []queue.Job
	cancelled []string
}

func (f *fakeJobs) Enqueue(ctx context.Context, job queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeJobs) CancelJob(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type memStatus struct {
	mu sync.Mutex
	m  map[string]store.Status
}

func (s *memStatus) Set(ctx context.Context, jobID string, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[jobID] = st
	return nil
}

func (s *memStatus) Get(ctx context.Context, jobID string) (store.Status, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[jobID]
	return st, ok, nil
}

type harness struct {
	srv     *Server
	handler http.Handler
	jobs    *fakeJobs
	status  *memStatus
	inputs  *storage.Local
	results *storage.Local
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	inputs, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	results, err := storage.NewLocal(t.TempDir(), "")
	require.NoError(t, err)
	h := &harness{
		jobs:    &fakeJobs{},
		status:  &memStatus{m: map[string]store.Status{}},
		inputs:  inputs,
		results: results,
	}
	srv, err := New(Dependencies{Config: cfg, Jobs: h.jobs, Status: h.status, Inputs: inputs, Results: results})
	require.NoError(t, err)
	h.srv = srv
	h.handler = srv.Routes()
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResp {
	t.Helper()
	var e errorResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestIndexIsLocalised(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lang="ja"`)
	assert.Contains(t, rec.Body.String(), "A3 → A4 PDF 分割")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rec = h.do(req)
	assert.Contains(t, rec.Body.String(), "A3 → A4 PDF splitter")
	assert.Contains(t, rec.Body.String(), `id="async"`)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	rec = h.do(req)
	assert.Contains(t, rec.Body.String(), `lang="ja"`)
	assert.Contains(t, rec.Body.String(), "A3 → A4 PDF 分割")
}

func TestSplitSimple(t *testing.T) {
	h := newHarness(t, nil)
	req := uploadRequest(t, "/split", "scan.pdf", pdfdoctest.Sheets(2, pdfdoctest.A3Landscape),
		map[string]string{"vertical": "on"})

	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=scan_A4.pdf`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", rec.Header().Get("X-Output-Pages"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestSplitBooklet(t *testing.T) {
	h := newHarness(t, nil)
	req := uploadRequest(t, "/split", "zine.pdf", pdfdoctest.Sheets(2, pdfdoctest.A3Landscape),
		map[string]string{"mode": "booklet", "pages": "8"})

	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "zine_booklet.pdf")
	assert.Equal(t, "8", rec.Header().Get("X-Output-Pages"))
	assert.Equal(t, "4", rec.Header().Get("X-Blank-Pages"))
}

func TestSplitRejections(t *testing.T) {
	pdf := pdfdoctest.Sheets(2, pdfdoctest.A3Landscape)
	cases := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		mutate func(*config.Config)
		code   int
		msg    string
	}{
		{
			name: "no file",
			req:  func(t *testing.T) *http.Request { return uploadRequest(t, "/split", "", nil, nil) },
			code: http.StatusBadRequest,
			msg:  "ファイルが選択されていません",
		},
		{
			name: "not a pdf",
			req: func(t *testing.T) *http.Request {
				r := uploadRequest(t, "/split", "notes.txt", []byte("hello"), nil)
				r.Header.Set("Accept-Language", "en")
				return r
			},
			code: http.StatusBadRequest,
			msg:  "Only PDF files can be uploaded",
		},
		{
			name: "unknown mode",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/split", "scan.pdf", pdf, map[string]string{"mode": "origami"})
			},
			code: http.StatusBadRequest,
		},
		{
			name: "bad pages",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/split", "scan.pdf", pdf, map[string]string{"mode": "booklet", "pages": "lots"})
			},
			code: http.StatusBadRequest,
		},
		{
			name: "damaged pdf",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/split", "scan.pdf", []byte("%PDF-1.7 nothing else"), nil)
			},
			code: http.StatusBadRequest,
		},
		{
			name:   "too many sheets",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "/split", "scan.pdf", pdf, nil) },
			mutate: func(c *config.Config) { c.Split.MaxSheets = 1 },
			code:   http.StatusRequestEntityTooLarge,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/split", "scan.pdf", bytes.Repeat([]byte("x"), 2<<20), nil)
			},
			mutate: func(c *config.Config) { c.Server.MaxUploadMB = 1 },
			code:   http.StatusRequestEntityTooLarge,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.mutate)
			rec := h.do(tc.req(t))
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.msg != "" {
				assert.Equal(t, tc.msg, decodeError(t, rec).Error)
			}
		})
	}
}

func TestSplitBusy(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Server.MaxConcurrent = 1 })
	release, ok := h.srv.sync.TryAcquire()
	require.True(t, ok)

	pdf := pdfdoctest.Sheets(1, pdfdoctest.A3Landscape)
	rec := h.do(uploadRequest(t, "/split", "scan.pdf", pdf, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	release()
	rec = h.do(uploadRequest(t, "/split", "scan.pdf", pdf, nil))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCreateJob(t *testing.T) {
	h := newHarness(t, nil)
	req := uploadRequest(t, "/jobs", "scan.pdf", pdfdoctest.Sheets(1, pdfdoctest.A3Landscape),
		map[string]string{"mode": "booklet", "rotate": "1"})

	rec := h.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp createJobResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/jobs/"+resp.JobID, rec.Header().Get("Location"))

	require.Len(t, h.jobs.enqueued, 1)
	job := h.jobs.enqueued[0]
	assert.Equal(t, resp.JobID, job.ID)
	assert.Equal(t, "booklet", job.Mode)
	assert.True(t, job.Rotate)
	assert.False(t, job.Reverse)

	rc, meta, err := h.inputs.Open(context.Background(), job.InputKey)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "scan.pdf", meta.Name)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/jobs/"+resp.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
	assert.Contains(t, rec.Body.String(), `"job_id":"`+resp.JobID+`"`)
}

func TestJobNotFound(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/jobs/" + uuid.NewString(), "/jobs/not-a-uuid", "/jobs/" + uuid.NewString() + "/download"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func (h *harness) finishedJob(t *testing.T) string {
	t.Helper()
	id := uuid.NewString()
	key := id + "/scan_A4.pdf"
	require.NoError(t, h.results.Save(context.Background(), key, pdfdoctest.Sheets(2, pdfdoctest.A3Portrait),
		storage.Meta{Name: "scan_A4.pdf"}))
	h.status.m[id] = store.Status{Status: store.StatusSuccess, Metadata: map[string]any{"result_key": key}}
	return id
}

func TestDownload(t *testing.T) {
	h := newHarness(t, nil)
	id := h.finishedJob(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "scan_A4.pdf")
}

func TestDownloadNotReady(t *testing.T) {
	h := newHarness(t, nil)
	id := uuid.NewString()
	h.status.m[id] = store.Status{Status: store.StatusProcessing}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/download", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPreview(t *testing.T) {
	h := newHarness(t, nil)
	id := h.finishedJob(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/preview/2?dpi=20", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/preview/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/jobs/"+id+"/preview/zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, nil)
	id := uuid.NewString()
	h.status.m[id] = store.Status{Status: store.StatusQueued}

	rec := h.do(httptest.NewRequest(http.MethodPost, "/jobs/"+id+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{id}, h.jobs.cancelled)
	assert.Equal(t, store.StatusCancelled, h.status.m[id].Status)

	// already terminal
	rec = h.do(httptest.NewRequest(http.MethodPost, "/jobs/"+id+"/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJobsDisabledWithoutRedis(t *testing.T) {
	srv, err := New(Dependencies{Config: config.Defaults()})
	require.NoError(t, err)
	handler := srv.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, "/jobs", "scan.pdf", []byte("%PDF"), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, rec.Body.String(), `id="async"`)
}

func TestOperationalEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/static/sw.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Service-Worker-Allowed"))

	rec = h.do(httptest.NewRequest(http.MethodDelete, "/split", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLangFor(t *testing.T) {
	for header, want := range map[string]string{
		"":                "ja",
		"en":              "en",
		"fr-FR,fr;q=0.9":  "ja",
		"de, en-GB;q=0.5": "en",
		"ja-JP":           "ja",
		"zh-CN,ko;q=0.8":  "ja",
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept-Language", header)
		base, _ := langFor(r).Base()
		assert.Equal(t, want, base.String(), header)
	}
}
