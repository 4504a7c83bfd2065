package worker

import (
	"context"
	"errors"

	"github.com/local/sheetsplit/internal/convert"
	"github.com/local/sheetsplit/internal/imposition"
	"github.com/local/sheetsplit/internal/pdfdoc"
	"github.com/local/sheetsplit/internal/storage"
)

// errJobCancelled stops a job that was cancelled after it started.
var errJobCancelled = errors.New("job cancelled")

// isPermanent reports errors caused by the job itself. Retrying them gives the
// same result, so they are not parked on the dead-letter stream.
func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case imposition.IsPrecondition(err),
		errors.Is(err, errJobCancelled),
		errors.Is(err, convert.ErrTooManySheets),
		errors.Is(err, pdfdoc.ErrEncrypted),
		errors.Is(err, pdfdoc.ErrNoPages),
		errors.Is(err, pdfdoc.ErrUnreadable),
		errors.Is(err, storage.ErrNotFound):
		return true
	}
	return false
}

// failureReason is the short machine-readable reason stored with the job.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, errJobCancelled):
		return "cancelled"
	case errors.Is(err, convert.ErrTooManySheets):
		return "too_many_sheets"
	case errors.Is(err, pdfdoc.ErrEncrypted):
		return "encrypted"
	case errors.Is(err, pdfdoc.ErrUnreadable), errors.Is(err, pdfdoc.ErrNoPages):
		return "unreadable_pdf"
	case imposition.IsPrecondition(err):
		return "invalid_request"
	case errors.Is(err, storage.ErrNotFound):
		return "input_missing"
	}
	return "internal"
}
