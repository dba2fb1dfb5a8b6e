package tempfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager hands out scratch file names under one directory. It only reserves
// names; the files are created by whoever writes to them.
type Manager struct {
	dir string
	log *zerolog.Logger
}

func NewManager(dir string, logger *zerolog.Logger) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("temp dir is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "TempFiles").Logger()
	return &Manager{dir: abs, log: &l}, nil
}

func (m *Manager) Dir() string { return m.dir }

// NewPath returns <dir>/<prefix>_<random hex><ext>.
func (m *Manager) NewPath(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return filepath.Join(m.dir, prefix+"_"+token+ext)
}

// Cleanup removes path. Missing files are fine and other errors are only logged:
// a stray scratch file must never fail a job.
func (m *Manager) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.Debug().Err(err).Str("path", path).Msg("temp cleanup failed")
	}
}

// SweepOlderThan removes regular files in the temp dir last modified more than
// age ago. Jobs clean up after themselves, so anything that old was left
// behind by a crashed process.
func (m *Manager) SweepOlderThan(ctx context.Context, age time.Duration) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.log.Debug().Err(err).Str("path", path).Msg("sweep failed")
			continue
		}
		removed++
	}
	return removed, nil
}

// NewScope starts tracking the scratch paths of one job.
func (m *Manager) NewScope() *Scope {
	return &Scope{mgr: m}
}

// Scope records every path reserved for a job so that a single deferred
// Cleanup releases all of them exactly once.
type Scope struct {
	mgr     *Manager
	mu      sync.Mutex
	paths   []string
	cleaned bool
}

func (s *Scope) Path(prefix, ext string) string {
	p := s.mgr.NewPath(prefix, ext)
	s.mu.Lock()
	s.paths = append(s.paths, p)
	s.mu.Unlock()
	return p
}

// Paths returns a copy of the reserved paths.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup deletes every reserved path. Calls after the first are no-ops.
func (s *Scope) Cleanup() {
	s.mu.Lock()
	if s.cleaned {
		s.mu.Unlock()
		return
	}
	s.cleaned = true
	paths := s.paths
	s.mu.Unlock()

	for _, p := range paths {
		s.mgr.Cleanup(p)
	}
}
