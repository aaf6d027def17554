// Package storagetest provides an in-memory storage.System for tests.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/JaimeStill/binder/pkg/lifecycle"
	"github.com/JaimeStill/binder/pkg/storage"
)

// Memory is a goroutine-safe storage.System. FailUploads and FailDeletes
// force the corresponding operations to return an error.
type Memory struct {
	mu          sync.Mutex
	Blobs       map[string][]byte
	Types       map[string]string
	FailUploads bool
	FailDeletes bool
}

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{
		Blobs: make(map[string][]byte),
		Types: make(map[string]string),
	}
}

var errInjected = errors.New("injected storage failure")

func (m *Memory) Start(lc *lifecycle.Coordinator) error { return nil }

func (m *Memory) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if key == "" {
		return storage.ErrEmptyKey
	}
	if strings.Contains(key, "../") {
		return storage.ErrInvalidKey
	}

	m.mu.Lock()
	fail := m.FailUploads
	m.mu.Unlock()
	if fail {
		return errInjected
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blobs[key] = data
	m.Types[key] = contentType
	return nil
}

func (m *Memory) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeletes {
		return errInjected
	}
	if _, ok := m.Blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.Blobs, key)
	delete(m.Types, key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Blobs[key]
	return ok, nil
}

// Len reports the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Blobs)
}

// SetFailUploads toggles injected upload failures.
func (m *Memory) SetFailUploads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailUploads = fail
}
