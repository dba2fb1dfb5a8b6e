package tempfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "scratch"), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManager(t *testing.T) {
	t.Run("should create the directory and reserve names without files", func(t *testing.T) {
		m := newTestManager(t)
		if fi, err := os.Stat(m.Dir()); err != nil || !fi.IsDir() {
			t.Fatalf("temp dir missing: %v", err)
		}
		p := m.NewPath("input", ".mp4")
		if filepath.Dir(p) != m.Dir() {
			t.Errorf("path %q not under %q", p, m.Dir())
		}
		base := filepath.Base(p)
		if !strings.HasPrefix(base, "input_") || !strings.HasSuffix(base, ".mp4") {
			t.Errorf("unexpected name %q", base)
		}
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("NewPath must not create the file, stat err = %v", err)
		}
	})

	t.Run("should normalize the extension dot", func(t *testing.T) {
		m := newTestManager(t)
		if p := m.NewPath("output", "ogg"); !strings.HasSuffix(p, ".ogg") {
			t.Errorf("got %q", p)
		}
	})

	t.Run("should not collide under concurrency", func(t *testing.T) {
		m := newTestManager(t)
		var mu sync.Mutex
		seen := make(map[string]struct{})
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p := m.NewPath("input", ".mp4")
				mu.Lock()
				seen[p] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		if len(seen) != 64 {
			t.Fatalf("expected 64 unique paths, got %d", len(seen))
		}
	})

	t.Run("should clean up idempotently", func(t *testing.T) {
		m := newTestManager(t)
		p := m.NewPath("output", ".mp4")
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		m.Cleanup(p)
		m.Cleanup(p)
		m.Cleanup("")
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("file still present: %v", err)
		}
	})
}

func TestScope(t *testing.T) {
	m := newTestManager(t)
	s := m.NewScope()
	in := s.Path("input", ".mp4")
	out := s.Path("output", ".mp4")
	if err := os.WriteFile(in, []byte("in"), 0o644); err != nil {
		t.Fatal(err)
	}
	// out is reserved but never written, like a failed conversion.

	if got := s.Paths(); len(got) != 2 || got[0] != in || got[1] != out {
		t.Fatalf("Paths() = %v", got)
	}

	s.Cleanup()
	if _, err := os.Stat(in); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("input not removed: %v", err)
	}

	// A file appearing after the first cleanup is left alone by a second call.
	if err := os.WriteFile(in, []byte("again"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.Cleanup()
	if _, err := os.Stat(in); err != nil {
		t.Errorf("second Cleanup should be a no-op, stat err = %v", err)
	}
}

func TestSweepOlderThan(t *testing.T) {
	t.Run("should remove only stale regular files", func(t *testing.T) {
		m := newTestManager(t)
		stale := m.NewPath("input", ".mp4")
		fresh := m.NewPath("output", ".ogg")
		for _, p := range []string{stale, fresh} {
			if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
				t.Fatal(err)
			}
		}
		old := time.Now().Add(-2 * time.Hour)
		if err := os.Chtimes(stale, old, old); err != nil {
			t.Fatal(err)
		}
		if err := os.Mkdir(filepath.Join(m.Dir(), "nested"), 0o755); err != nil {
			t.Fatal(err)
		}

		n, err := m.SweepOlderThan(context.Background(), time.Hour)
		if err != nil {
			t.Fatalf("SweepOlderThan: %v", err)
		}
		if n != 1 {
			t.Errorf("removed %d files, want 1", n)
		}
		if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
			t.Error("stale file survived")
		}
		if _, err := os.Stat(fresh); err != nil {
			t.Errorf("fresh file removed: %v", err)
		}
	})
}
