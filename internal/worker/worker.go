package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/sheetsplit/internal/convert"
	"github.com/local/sheetsplit/internal/filetype"
	"github.com/local/sheetsplit/internal/imposition"
	"github.com/local/sheetsplit/internal/logger"
	"github.com/local/sheetsplit/internal/metrics"
	"github.com/local/sheetsplit/internal/pdfdoc"
	"github.com/local/sheetsplit/internal/queue"
	"github.com/local/sheetsplit/internal/storage"
	"github.com/local/sheetsplit/internal/store"
)

type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, *queue.Job, error)
	Ack(ctx context.Context, msgID string) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	AddDLQ(ctx context.Context, job queue.Job, reason string) error
	Depth(ctx context.Context) (int64, error)
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
}

type Config struct {
	Concurrency int
	JobTimeout  time.Duration
	// Block is how long one dequeue waits for a job.
	Block    time.Duration
	Consumer string
	// Convert carries the service-wide conversion settings; the per-job
	// fields are filled from each job.
	Convert convert.Options
}

// Pool runs conversion jobs from the queue on a fixed number of goroutines.
type Pool struct {
	cfg     Config
	q       Queue
	status  StatusStore
	inputs  storage.Store
	results storage.Store

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, q Queue, status StatusStore, inputs, results storage.Store) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "sheetsplit"
	}
	return &Pool{cfg: cfg, q: q, status: status, inputs: inputs, results: results}
}

// Start launches the workers. They run until Stop or until ctx is done.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	consumer := fmt.Sprintf("%s-%d", p.cfg.Consumer, id)
	log.Info().Int("worker", id).Msg("conversion worker started")
	for {
		if ctx.Err() != nil {
			log.Info().Int("worker", id).Msg("conversion worker stopped")
			return
		}
		msgID, job, err := p.q.Dequeue(ctx, consumer, p.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Str("msg_id", msgID).Msg("queue dequeue error")
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if job == nil {
			continue
		}
		if depth, err := p.q.Depth(ctx); err == nil {
			metrics.SetQueueDepth(depth)
		}
		p.handle(ctx, msgID, *job)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// cancelled reports whether the job was cancelled through the API. Lookup
// errors count as not cancelled.
func (p *Pool) cancelled(ctx context.Context, jobID string) bool {
	c, err := p.q.IsCancelled(context.WithoutCancel(ctx), jobID)
	return err == nil && c
}

// handle processes one job and always acks it.
func (p *Pool) handle(ctx context.Context, msgID string, job queue.Job) {
	lg := logger.ForJob(job.ID, job.Mode)
	// status writes must survive shutdown cancellation
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := p.q.Ack(bg, msgID); err != nil {
			lg.Error().Err(err).Str("msg_id", msgID).Msg("ack failed")
		}
	}()

	if p.cancelled(ctx, job.ID) {
		lg.Warn().Msg("job cancelled before processing; skipping")
		now := time.Now()
		_ = p.status.Set(bg, job.ID, store.Status{Status: store.StatusCancelled, Message: "cancelled", End: &now})
		return
	}

	start := time.Now()
	_ = p.status.Set(bg, job.ID, store.Status{Status: store.StatusProcessing, Progress: 10, Message: "converting", Start: &start})

	meta, err := p.process(ctx, job)
	end := time.Now()
	if err == nil && p.cancelled(ctx, job.ID) {
		// cancelled while the result was being saved; the API already answered
		err = errJobCancelled
	}
	if errors.Is(err, errJobCancelled) {
		lg.Warn().Msg("job cancelled while processing; result discarded")
		_ = p.status.Set(bg, job.ID, store.Status{Status: store.StatusCancelled, Message: "cancelled", Start: &start, End: &end})
		return
	}
	if err != nil {
		reason := failureReason(err)
		lg.Error().Err(err).Str("reason", reason).Msg("job failed")
		_ = p.status.Set(bg, job.ID, store.Status{
			Status:   store.StatusFailed,
			Progress: 100,
			Message:  err.Error(),
			Start:    &start,
			End:      &end,
			Metadata: map[string]any{"reason": reason},
		})
		if !isPermanent(err) {
			if derr := p.q.AddDLQ(bg, job, err.Error()); derr != nil {
				lg.Error().Err(derr).Msg("dlq push failed")
			}
		}
		return
	}

	_ = p.status.Set(bg, job.ID, store.Status{
		Status:   store.StatusSuccess,
		Progress: 100,
		Message:  "done",
		Start:    &start,
		End:      &end,
		Metadata: meta,
	})
	lg.Info().Str("result_key", meta["result_key"].(string)).Dur("duration", end.Sub(start)).Msg("job finished")
}

func (p *Pool) process(ctx context.Context, job queue.Job) (map[string]any, error) {
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	mode, err := imposition.ParseMode(job.Mode)
	if err != nil {
		return nil, err
	}

	rc, _, err := p.inputs.Open(ctx, job.InputKey)
	if err != nil {
		return nil, fmt.Errorf("load input: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	lg := logger.ForJob(job.ID, job.Mode)
	opts := p.cfg.Convert
	opts.Mode = mode
	opts.Rotate = job.Rotate
	opts.Reverse = job.Reverse
	opts.TotalPages = job.TotalPages
	opts.Logger = &lg

	var out bytes.Buffer
	rep, err := convert.Convert(ctx, bytes.NewReader(data), &out, opts)
	if err != nil {
		if errors.Is(err, pdfdoc.ErrUnreadable) {
			info := filetype.Detect(data)
			lg.Warn().Str("detected", info.MIMEType).Bool("pdf_header", info.IsPDF()).Msg("input could not be parsed")
		}
		return nil, err
	}

	if p.cancelled(ctx, job.ID) {
		return nil, errJobCancelled
	}

	name := convert.OutputName(job.UploadName, mode)
	key := job.ID + "/" + name
	err = p.results.Save(ctx, key, out.Bytes(), storage.Meta{
		Name:        name,
		ContentType: "application/pdf",
		Metadata:    map[string]string{"job-id": job.ID, "mode": job.Mode},
	})
	if err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	return map[string]any{
		"result_key":        key,
		"output_name":       name,
		"sheets":            rep.Sheets,
		"output_pages":      rep.OutputPages,
		"total_final_pages": rep.TotalFinalPages,
		"padded":            rep.Padded,
		"blanks":            rep.Blanks,
		"skipped":           rep.Skipped,
		"duplicates":        rep.Duplicates,
	}, nil
}
