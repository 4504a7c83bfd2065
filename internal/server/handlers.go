package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/sheetsplit/internal/convert"
	"github.com/local/sheetsplit/internal/imposition"
	"github.com/local/sheetsplit/internal/metrics"
	"github.com/local/sheetsplit/internal/pdfdoc"
	"github.com/local/sheetsplit/internal/preview"
	"github.com/local/sheetsplit/internal/queue"
	"github.com/local/sheetsplit/internal/storage"
	"github.com/local/sheetsplit/internal/store"
	"github.com/local/sheetsplit/internal/web"
)

// upload is a validated multipart request.
type upload struct {
	name    string
	data    []byte
	mode    imposition.Mode
	reverse bool
	rotate  bool
	pages   int
}

// errUpload carries the response for a rejected upload.
type errUpload struct {
	code int
	id   msgID
	args []any
}

func (e *errUpload) Error() string { return string(e.id) }

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxMB := s.deps.Config.Server.MaxUploadMB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &errUpload{code: http.StatusRequestEntityTooLarge, id: msgTooLarge, args: []any{maxMB}}
		}
		return nil, &errUpload{code: http.StatusBadRequest, id: msgNoFile}
	}

	f, hdr, err := r.FormFile("file")
	if err != nil || hdr.Filename == "" {
		return nil, &errUpload{code: http.StatusBadRequest, id: msgNoFile}
	}
	defer f.Close()
	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".pdf") {
		return nil, &errUpload{code: http.StatusBadRequest, id: msgOnlyPDF}
	}

	u := &upload{name: hdr.Filename}
	if u.mode, err = imposition.ParseMode(r.FormValue("mode")); err != nil {
		return nil, &errUpload{code: http.StatusBadRequest, id: msgBadRequest, args: []any{err.Error()}}
	}
	// checkboxes count when present, whatever their value
	_, u.reverse = r.MultipartForm.Value["vertical"]
	_, u.rotate = r.MultipartForm.Value["rotate"]
	if p := strings.TrimSpace(r.FormValue("pages")); p != "" {
		if u.pages, err = strconv.Atoi(p); err != nil || u.pages <= 0 {
			return nil, &errUpload{code: http.StatusBadRequest, id: msgBadRequest, args: []any{"pages=" + p}}
		}
	}
	if u.data, err = io.ReadAll(f); err != nil {
		return nil, &errUpload{code: http.StatusBadRequest, id: msgNoFile}
	}
	return u, nil
}

func (s *Server) convertOptions(u *upload) convert.Options {
	sp := s.deps.Config.Split
	return convert.Options{
		Mode:       u.mode,
		Rotate:     u.rotate,
		Reverse:    u.reverse,
		TotalPages: u.pages,
		Blank:      imposition.Size{Width: sp.BlankWidth, Height: sp.BlankHeight},
		Workers:    sp.Workers,
		MaxSheets:  sp.MaxSheets,
	}
}

func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, err error) {
	var ue *errUpload
	if errors.As(err, &ue) {
		writeError(w, r, ue.code, ue.id, ue.args...)
		return
	}
	writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
}

// writeConvertError maps conversion errors onto status codes.
func writeConvertError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, convert.ErrTooManySheets):
		writeError(w, r, http.StatusRequestEntityTooLarge, msgTooManySheets, err.Error())
	case errors.Is(err, pdfdoc.ErrEncrypted):
		writeError(w, r, http.StatusBadRequest, msgEncrypted)
	case imposition.IsPrecondition(err), errors.Is(err, pdfdoc.ErrUnreadable), errors.Is(err, pdfdoc.ErrNoPages):
		writeError(w, r, http.StatusBadRequest, msgBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tag := langFor(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.web.RenderIndex(w, web.IndexData{
		Lang:        tag.String(),
		T:           labels[tag],
		MaxUploadMB: s.deps.Config.Server.MaxUploadMB,
		Jobs:        s.jobsEnabled(),
	})
	if err != nil {
		log.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	release, ok := s.sync.TryAcquire()
	if !ok {
		w.Header().Set("Retry-After", "5")
		writeError(w, r, http.StatusServiceUnavailable, msgBusy)
		return
	}
	metrics.SetSyncInFlight(s.sync.InFlight())
	defer func() {
		release()
		metrics.SetSyncInFlight(s.sync.InFlight())
	}()

	u, err := s.readUpload(w, r)
	if err != nil {
		s.rejectUpload(w, r, err)
		return
	}

	ctx := r.Context()
	if t := s.deps.Config.Server.SyncTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	var out bytes.Buffer
	rep, err := convert.Convert(ctx, bytes.NewReader(u.data), &out, s.convertOptions(u))
	if err != nil {
		writeConvertError(w, r, err)
		return
	}

	name := convert.OutputName(u.name, u.mode)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	w.Header().Set("X-Output-Pages", strconv.Itoa(rep.OutputPages))
	w.Header().Set("X-Blank-Pages", strconv.Itoa(rep.Blanks))
	_, _ = w.Write(out.Bytes())
}

type createJobResp struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled() {
		writeError(w, r, http.StatusServiceUnavailable, msgJobsDisabled)
		return
	}
	u, err := s.readUpload(w, r)
	if err != nil {
		s.rejectUpload(w, r, err)
		return
	}

	ctx := r.Context()
	jobID := uuid.NewString()
	inputKey := "inputs/" + jobID + ".pdf"
	if err := s.deps.Inputs.Save(ctx, inputKey, u.data, storage.Meta{Name: u.name}); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("store upload failed")
		writeError(w, r, http.StatusInternalServerError, msgFailed, "store upload")
		return
	}

	now := time.Now()
	err = s.deps.Status.Set(ctx, jobID, store.Status{
		Status:   store.StatusQueued,
		Message:  "queued",
		Start:    &now,
		Metadata: map[string]any{"upload_name": u.name, "mode": u.mode.String()},
	})
	if err == nil {
		err = s.deps.Jobs.Enqueue(ctx, queue.Job{
			ID:         jobID,
			Mode:       u.mode.String(),
			Rotate:     u.rotate,
			Reverse:    u.reverse,
			TotalPages: u.pages,
			UploadName: u.name,
			InputKey:   inputKey,
			CreatedAt:  now,
		})
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
		writeError(w, r, http.StatusInternalServerError, msgFailed, "enqueue")
		return
	}

	log.Info().Str("job_id", jobID).Str("mode", u.mode.String()).Str("file", u.name).Msg("job created")
	w.Header().Set("Location", "/jobs/"+jobID)
	writeJSON(w, http.StatusCreated, createJobResp{Status: store.StatusQueued, JobID: jobID})
}

// lookupJob writes the error response itself when ok is false.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (string, store.Status, bool) {
	if !s.jobsEnabled() {
		writeError(w, r, http.StatusServiceUnavailable, msgJobsDisabled)
		return "", store.Status{}, false
	}
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, r, http.StatusNotFound, msgJobNotFound)
		return "", store.Status{}, false
	}
	st, found, err := s.deps.Status.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
		return "", store.Status{}, false
	}
	if !found {
		writeError(w, r, http.StatusNotFound, msgJobNotFound)
		return "", store.Status{}, false
	}
	return id, st, true
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, st, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		JobID string `json:"job_id"`
		store.Status
	}{id, st})
}

// openResult loads the finished PDF of a job.
func (s *Server) openResult(w http.ResponseWriter, r *http.Request) ([]byte, storage.Meta, bool) {
	_, st, ok := s.lookupJob(w, r)
	if !ok {
		return nil, storage.Meta{}, false
	}
	key, _ := st.Metadata["result_key"].(string)
	if st.Status != store.StatusSuccess || key == "" {
		writeError(w, r, http.StatusConflict, msgNotReady)
		return nil, storage.Meta{}, false
	}
	rc, meta, err := s.deps.Results.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusGone, msgJobNotFound)
		} else {
			writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
		}
		return nil, storage.Meta{}, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
		return nil, storage.Meta{}, false
	}
	return data, meta, true
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, meta, ok := s.openResult(w, r)
	if !ok {
		return
	}
	ct := meta.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	w.Header().Set("Content-Type", ct)
	if meta.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.Name}))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		writeError(w, r, http.StatusBadRequest, msgBadPage)
		return
	}
	data, _, ok := s.openResult(w, r)
	if !ok {
		return
	}
	opts := preview.Defaults
	if dpi, err := strconv.Atoi(r.URL.Query().Get("dpi")); err == nil && dpi > 0 && dpi <= 300 {
		opts.DPI = dpi
	}
	opts.Gray = r.URL.Query().Get("gray") == "1"

	img, err := preview.RenderJPEG(data, page, opts)
	if err != nil {
		if errors.Is(err, preview.ErrPageRange) {
			writeError(w, r, http.StatusNotFound, msgBadPage)
			return
		}
		writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(img)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, st, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if st.Terminal() {
		writeJSON(w, http.StatusConflict, struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}{id, st.Status})
		return
	}
	if err := s.deps.Jobs.CancelJob(r.Context(), id); err != nil {
		writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
		return
	}
	now := time.Now()
	st.Status, st.Message, st.End = store.StatusCancelled, "cancelled", &now
	if err := s.deps.Status.Set(r.Context(), id, st); err != nil {
		writeError(w, r, http.StatusInternalServerError, msgFailed, err.Error())
		return
	}
	log.Info().Str("job_id", id).Msg("job cancelled")
	writeJSON(w, http.StatusOK, struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}{id, st.Status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Checker == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}
	sum := s.deps.Checker.Summary(r.Context())
	code := http.StatusOK
	if !sum.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}

