package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing(context.Context) error { return nil }

func failingWith(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func serve(t *testing.T, handler http.HandlerFunc, path string) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, body.Decode(jx.DecodeBytes(w.Body.Bytes())))
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		runs     int
		wantCode int
		wantFail map[string]string
	}{
		{
			name:     "no checks",
			wantCode: http.StatusOK,
		},
		{
			name:     "all passing",
			checks:   map[string]CheckFunc{"a": passing, "b": passing},
			runs:     failThreshold,
			wantCode: http.StatusOK,
		},
		{
			name:     "healthy before first run",
			checks:   map[string]CheckFunc{"db": failingWith("refused")},
			wantCode: http.StatusOK,
		},
		{
			name:     "below failure threshold",
			checks:   map[string]CheckFunc{"db": failingWith("refused")},
			runs:     failThreshold - 1,
			wantCode: http.StatusOK,
		},
		{
			name:     "at failure threshold",
			checks:   map[string]CheckFunc{"db": failingWith("connection refused")},
			runs:     failThreshold,
			wantCode: http.StatusServiceUnavailable,
			wantFail: map[string]string{"db": "connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			for name, fn := range tt.checks {
				h.AddLivenessCheck(name, time.Second, fn)
			}
			for _, c := range h.live {
				runN(c, tt.runs)
			}

			code, body := serve(t, h.LiveEndpoint, "/livez")
			assert.Equal(t, tt.wantCode, code)
			if tt.wantFail == nil {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Checks)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			assert.Equal(t, tt.wantFail, body.Checks)
		})
	}
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)

	code, body := serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"_readiness": "service is not ready"}, body.Checks)

	h.SetReady(true)
	code, body = serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	// Shutdown closes the gate again.
	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OnlyFailingChecksListed(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passing)
	h.AddReadinessCheck("redis", time.Second, failingWith("i/o timeout"))
	h.SetReady(true)
	for _, c := range h.gating {
		runN(c, failThreshold)
	}

	code, body := serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"redis": "i/o timeout"}, body.Checks)
}

func TestReadyEndpoint_IgnoresLivenessChecks(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingWith("too many"))
	h.SetReady(true)
	runN(h.live[0], failThreshold)

	code, _ := serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	code, _ = serve(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCheck_Recovers(t *testing.T) {
	down := true
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})

	runN(c, failThreshold)
	assert.Equal(t, "down", c.failure())

	down = false
	runN(c, passThreshold)
	assert.Empty(t, c.failure())

	// One failure after recovering is not enough to flip it back.
	down = true
	runN(c, 1)
	assert.Empty(t, c.failure())
}

func TestCheck_UsesTimeout(t *testing.T) {
	c := newCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	runN(c, failThreshold)
	assert.Equal(t, context.DeadlineExceeded.Error(), c.failure())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, failingWith("connection refused"))
	h.AddReadinessCheck("redis", time.Second, failingWith("timeout"))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return w.Code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t,
		`{"status":"unhealthy","checks":{"postgres":"connection refused","redis":"timeout"}}`,
		w.Body.String(),
	)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, failingWith("err"))
	h.AddReadinessCheck("postgres", time.Second, passing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.SetReady(i%2 == 0)
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

// --- Mock implementations ---

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	check := PingCheck(pingerFunc(func(context.Context) error { return nil }))
	require.NoError(t, check(context.Background()))

	check = PingCheck(pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial tcp: refused")
}
