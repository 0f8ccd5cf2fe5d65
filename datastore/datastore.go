// Package datastore is a small JSON-file backed key-value store. Values are
// kept in memory as encoded JSON and flushed to disk atomically, either on
// a timer or explicitly.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("datastore is closed")

type options struct {
	autoSave time.Duration
	log      zerolog.Logger
}

type Option func(*options)

// WithAutoSave flushes dirty data every interval. Zero disables it.
func WithAutoSave(interval time.Duration) Option {
	return func(o *options) { o.autoSave = interval }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

type DataStore struct {
	file string
	log  zerolog.Logger

	mu       sync.RWMutex
	data     map[string]json.RawMessage
	checksum [sha256.Size]byte
	closed   bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open loads path, creating it (and its directory) when missing.
func Open(path string, opts ...Option) (*DataStore, error) {
	if path == "" {
		return nil, errors.New("datastore: empty file path")
	}
	o := options{autoSave: 10 * time.Second, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}

	ds := &DataStore{
		file: path,
		log:  o.log,
		data: make(map[string]json.RawMessage),
	}
	if err := ds.load(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds.cancel = cancel
	if o.autoSave > 0 {
		ds.wg.Add(1)
		go ds.autoSave(ctx, o.autoSave)
	}
	return ds, nil
}

func (ds *DataStore) load() error {
	raw, err := os.ReadFile(ds.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("datastore: read %s: %w", ds.file, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &ds.data); err != nil {
		return fmt.Errorf("datastore: decode %s: %w", ds.file, err)
	}
	ds.checksum = sha256.Sum256(raw)
	return nil
}

// Put stores v under key as JSON.
func (ds *DataStore) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("datastore: encode %q: %w", key, err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}
	ds.data[key] = raw
	return nil
}

// Get decodes the value under key into v and reports whether it existed.
func (ds *DataStore) Get(key string, v any) (bool, error) {
	ds.mu.RLock()
	raw, ok := ds.data[key]
	closed := ds.closed
	ds.mu.RUnlock()

	if closed {
		return false, ErrClosed
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("datastore: decode %q: %w", key, err)
	}
	return true, nil
}

func (ds *DataStore) Delete(key string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}
	delete(ds.data, key)
	return nil
}

// Flush writes the data to disk unless nothing changed since the last write.
func (ds *DataStore) Flush() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return ErrClosed
	}
	return ds.flushLocked()
}

func (ds *DataStore) flushLocked() error {
	raw, err := json.MarshalIndent(ds.data, "", "  ")
	if err != nil {
		return fmt.Errorf("datastore: encode: %w", err)
	}
	sum := sha256.Sum256(raw)
	if sum == ds.checksum {
		return nil
	}
	if err := writeFileAtomic(ds.file, raw); err != nil {
		return err
	}
	ds.checksum = sum
	return nil
}

// Close stops autosave and writes a final copy to disk.
func (ds *DataStore) Close() error {
	ds.cancel()
	ds.wg.Wait()

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closed {
		return nil
	}
	ds.closed = true
	return ds.flushLocked()
}

func (ds *DataStore) autoSave(ctx context.Context, every time.Duration) {
	defer ds.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ds.Flush(); err != nil && !errors.Is(err, ErrClosed) {
				ds.log.Error().Err(err).Str("file", ds.file).Msg("autosave failed")
			}
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("datastore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("datastore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("datastore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("datastore: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("datastore: rename temp file: %w", err)
	}
	return nil
}
