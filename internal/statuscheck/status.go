package statuscheck

import (
	"context"
	"errors"
	"time"
)

// Pinger models the minimal capability we need for status checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates health checks for the service's dependencies.
type Checker struct {
	redis   Pinger
	storage Pinger
	backend string
}

// Options configures the Checker. A nil Redis means async jobs are disabled.
type Options struct {
	Redis          Pinger
	Storage        Pinger
	StorageBackend string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis   Status `json:"redis"`
	Storage Status `json:"storage"`
	Backend string `json:"storage_backend"`
	Ready   bool   `json:"ready"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{redis: opts.Redis, storage: opts.Storage, backend: opts.StorageBackend}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Redis:   check(ctx, c.redis, 2*time.Second, "Connected", "Jobs disabled"),
		Storage: check(ctx, c.storage, 5*time.Second, "Writable", "Not configured"),
		Backend: c.backend,
	}
	s.Ready = s.Storage.OK
	return s
}

func check(ctx context.Context, p Pinger, timeout time.Duration, okMsg, missingMsg string) Status {
	if p == nil {
		return Status{OK: false, Message: missingMsg}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: okMsg}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
