package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/sheetsplit/internal/convert"
	"github.com/local/sheetsplit/internal/imposition"
	"github.com/local/sheetsplit/internal/metrics"
	"github.com/local/sheetsplit/internal/queue"
	"github.com/local/sheetsplit/internal/server"
	"github.com/local/sheetsplit/internal/statuscheck"
	"github.com/local/sheetsplit/internal/storage"
	"github.com/local/sheetsplit/internal/store"
	"github.com/local/sheetsplit/internal/worker"
)

type serveFlags struct {
	noJobs   bool
	noWorker bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Run the upload form and the HTTP API. When Redis is reachable, uploads can
also be converted as background jobs by the embedded worker pool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, f)
		},
	}
	cmd.Flags().BoolVar(&f.noJobs, "no-jobs", false, "disable background jobs (no Redis)")
	cmd.Flags().BoolVar(&f.noWorker, "no-worker", false, "accept jobs but leave them to external workers")
	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, f *serveFlags) error {
	cfg := rootOpts.Config
	metrics.Init()

	results, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	deps := server.Dependencies{Config: cfg, Results: results}
	checkOpts := statuscheck.Options{Storage: results, StorageBackend: cfg.Storage.Backend}

	if !f.noJobs {
		rc, err := queue.Connect(ctx, cfg.Queue.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; background jobs disabled")
		} else {
			defer rc.Close()
			rq, err := queue.NewRedisQueue(ctx, rc, cfg.Queue.Stream, cfg.Queue.Group)
			if err != nil {
				return err
			}
			inputs, err := storage.NewLocal(cfg.Server.UploadDir, cfg.Storage.Password)
			if err != nil {
				return err
			}
			status := store.NewRedisStatus(rc, cfg.Worker.StatusTTL)
			deps.Jobs, deps.Status, deps.Inputs = rq, status, inputs
			checkOpts.Redis = rq

			if !f.noWorker {
				pool := worker.New(worker.Config{
					Concurrency: cfg.Worker.Concurrency,
					JobTimeout:  cfg.Worker.JobTimeout,
					Block:       cfg.Queue.Block,
					Consumer:    hostname(),
					Convert: convert.Options{
						Blank:     imposition.Size{Width: cfg.Split.BlankWidth, Height: cfg.Split.BlankHeight},
						Workers:   cfg.Split.Workers,
						MaxSheets: cfg.Split.MaxSheets,
					},
				}, rq, status, inputs, results)
				pool.Start(ctx)
				defer pool.Stop()
			}
		}
	}
	deps.Checker = statuscheck.New(checkOpts)

	srv, err := server.New(deps)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "sheetsplit"
	}
	return h
}
