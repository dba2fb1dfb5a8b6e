package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubGate struct{}

func (stubGate) Capacity() int { return 4 }
func (stubGate) InUse() int    { return 3 }
func (stubGate) Waiting() int  { return 1 }

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminServer(t *testing.T) {
	t.Run("health returns 200", func(t *testing.T) {
		s := NewServer(0, nil, nil, newTestLogger())
		rec := serve(s.Handler(), "/health")
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("ready reflects the mode store", func(t *testing.T) {
		ok := NewServer(0, stubPinger{}, nil, newTestLogger())
		if rec := serve(ok.Handler(), "/ready"); rec.Code != http.StatusOK {
			t.Fatalf("ready = %d", rec.Code)
		}
		down := NewServer(0, stubPinger{err: errors.New("dial tcp: refused")}, nil, newTestLogger())
		if rec := serve(down.Handler(), "/ready"); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("ready = %d, want 503", rec.Code)
		}
	})

	t.Run("status reports the gate", func(t *testing.T) {
		s := NewServer(0, nil, stubGate{}, newTestLogger())
		rec := serve(s.Handler(), "/status")
		var body statusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("bad json: %v", err)
		}
		if body.GateCapacity != 4 || body.GateInUse != 3 || body.GateWaiting != 1 {
			t.Fatalf("unexpected status %+v", body)
		}
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		s := NewServer(0, nil, nil, newTestLogger())
		rec := serve(s.Handler(), "/metrics")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
			t.Fatalf("metrics = %d", rec.Code)
		}
	})

	t.Run("unknown routes are 404", func(t *testing.T) {
		s := NewServer(0, nil, nil, newTestLogger())
		if rec := serve(s.Handler(), "/payment/success"); rec.Code != http.StatusNotFound {
			t.Fatalf("got %d", rec.Code)
		}
	})
}

func TestRecoverMiddleware(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := Chain(boom, TraceID(), Recover(newTestLogger()))
	if rec := serve(h, "/"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("got %d", rec.Code)
	}
}
