package statuscheck

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSummaryHealthy(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	s := New(Options{Redis: ok, Storage: ok, StorageBackend: "local"}).Summary(context.Background())

	assert.True(t, s.Redis.OK)
	assert.True(t, s.Storage.OK)
	assert.True(t, s.Ready)
	assert.Equal(t, "local", s.Backend)
}

func TestSummaryWithoutRedisIsStillReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	s := New(Options{Storage: ok}).Summary(context.Background())

	assert.False(t, s.Redis.OK)
	assert.Equal(t, "Jobs disabled", s.Redis.Message)
	assert.True(t, s.Ready)
}

func TestSummaryStorageDown(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New(strings.Repeat("x", 200)) })
	s := New(Options{Storage: down}).Summary(context.Background())

	assert.False(t, s.Ready)
	assert.Len(t, s.Storage.Message, 120)
}

func TestTrimErrorTimeout(t *testing.T) {
	assert.Equal(t, "timeout", trimError(context.DeadlineExceeded))
	assert.Equal(t, "", trimError(nil))
}
