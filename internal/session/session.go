// Package session guards the process wide lifecycle of the extract API:
// one Initialize before any store is opened, one Cleanup after every store
// is released. It also owns the registry that keeps a file from being
// opened by two stores at once.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	locking "github.com/tuannm99/novaextract/internal/lock"
)

var (
	ErrSessionNotInitialized = errors.New("session: extract API is not initialized")
	ErrSessionActive         = errors.New("session: extract API is already initialized")
	ErrStoresOpen            = errors.New("session: stores are still open")
	ErrStoreLocked           = errors.New("session: extract file is already open")
)

// only one session may be live per process
var (
	globalMu sync.Mutex
	current  *Session
)

type Session struct {
	mu        sync.Mutex
	active    bool
	handles   *locking.Registry
	logger    *zap.Logger
	startedAt time.Time
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Initialize starts the process wide session. Calling it again before
// Cleanup fails with ErrSessionActive; sessions are not reentrant.
func Initialize(opts ...Option) (*Session, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if current != nil {
		return nil, ErrSessionActive
	}

	s := &Session{
		active:    true,
		handles:   locking.NewRegistry(),
		logger:    zap.NewNop(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	current = s

	s.logger.Debug("extract session initialized")
	return s, nil
}

// Cleanup ends the session. Every store must have been closed or
// discarded first.
func (s *Session) Cleanup() error {
	if s == nil {
		return ErrSessionNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrSessionNotInitialized
	}
	if n := s.handles.Count(); n > 0 {
		return fmt.Errorf("%w: %d (%v)", ErrStoresOpen, n, s.handles.Keys())
	}
	s.active = false

	globalMu.Lock()
	if current == s {
		current = nil
	}
	globalMu.Unlock()

	s.logger.Debug("extract session cleaned up", zap.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ResolvePath returns the absolute, symlink free form of path, which is
// the key handles are held under. When path does not exist yet its parent
// directory is resolved instead.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		// missing parent: the first flush reports it
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// Acquire claims the exclusive handle for path. Paths that resolve to the
// same file share one handle. The returned release func is safe to call
// more than once.
func (s *Session) Acquire(path string) (release func(), err error) {
	if s == nil {
		return nil, ErrSessionNotInitialized
	}
	key, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrSessionNotInitialized
	}
	if !s.handles.Acquire(key) {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.handles.Release(key) })
	}, nil
}

// OpenPaths lists the resolved paths currently held by stores.
func (s *Session) OpenPaths() []string {
	if s == nil {
		return nil
	}
	return s.handles.Keys()
}

func (s *Session) Logger() *zap.Logger {
	if s == nil {
		return zap.NewNop()
	}
	return s.logger
}
