package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Local stores objects as files under a directory, with a JSON sidecar
// holding the metadata.
type Local struct {
	dir      string
	password string
}

// NewLocal creates dir if needed.
func NewLocal(dir, password string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("local storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Local{dir: dir, password: password}, nil
}

func (l *Local) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.dir, filepath.FromSlash(k)), nil
}

func (l *Local) Save(ctx context.Context, key string, data []byte, meta Meta) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	meta = fillMeta(meta, data)
	if l.password != "" {
		if data, err = encrypt(data, l.password); err != nil {
			return fmt.Errorf("failed to encrypt data: %w", err)
		}
		meta.Encrypted = true
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	side, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(p, data); err != nil {
		return err
	}
	if err := writeFileAtomic(p+".meta.json", side); err != nil {
		return err
	}
	log.Debug().Str("key", key).Int64("size", meta.Size).Bool("encrypted", meta.Encrypted).Msg("saved to local storage")
	return nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, Meta, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, Meta{}, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Meta{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, Meta{}, err
	}
	var meta Meta
	if side, err := os.ReadFile(p + ".meta.json"); err == nil {
		if err := json.Unmarshal(side, &meta); err != nil {
			return nil, Meta{}, fmt.Errorf("decode metadata for %s: %w", key, err)
		}
	}
	if meta.Encrypted {
		if data, err = decrypt(data, l.password); err != nil {
			return nil, Meta{}, fmt.Errorf("failed to decrypt %s: %w", key, err)
		}
	}
	meta = fillMeta(meta, data)
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

// Ping checks that the directory is writable.
func (l *Local) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(l.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("results dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func writeFileAtomic(p string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}
