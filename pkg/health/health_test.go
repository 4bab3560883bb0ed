package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	body := statusBody{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			body.Status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				body.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return body
}

func serve(fn http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func passing(context.Context) error { return nil }

// runN drives the n-th check of kind through count polls.
func (h *Health) runN(kind Kind, i, count int) {
	for range count {
		h.checks[kind][i].run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		polls  int
		code   int
		status string
	}{
		{name: "starts healthy", polls: 0, code: http.StatusOK, status: "ok"},
		{name: "below threshold", polls: 2, code: http.StatusOK, status: "ok"},
		{name: "at threshold", polls: 3, code: http.StatusServiceUnavailable, status: "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.Add(Liveness, "db", time.Second, failing("connection refused"))
			h.runN(Liveness, 0, tt.polls)

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeStatus(t, w)
			assert.Equal(t, tt.status, body.Status)
			if tt.code != http.StatusOK {
				assert.Equal(t, "connection refused", body.Checks["db"])
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", time.Second, passing)
	h.Add(Readiness, "mail", time.Second, failing("smtp down"), FailureThreshold(1))

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "service is not ready", decodeStatus(t, w).Checks["_readiness"])

	h.SetReady(true)
	assert.True(t, h.IsReady())
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)

	h.runN(Readiness, 1, 1)
	assert.False(t, h.IsReady())
	body := decodeStatus(t, serve(h.ReadyEndpoint))
	assert.Equal(t, map[string]string{"mail": "smtp down"}, body.Checks)

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestCheckRecovers(t *testing.T) {
	var err error
	fn := func(context.Context) error { return err }

	h := New()
	h.Add(Liveness, "flaky", time.Second, fn, FailureThreshold(1), SuccessThreshold(2))

	err = errors.New("down")
	h.runN(Liveness, 0, 1)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.LiveEndpoint).Code)

	err = nil
	h.runN(Liveness, 0, 1)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.LiveEndpoint).Code)
	h.runN(Liveness, 0, 1)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code)
}

func TestStartStop(t *testing.T) {
	h := New()
	h.Add(Readiness, "db", time.Second, failing("down"), FailureThreshold(1))
	h.SetReady(true)

	h.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pingerFunc(passing))(context.Background()))
	assert.ErrorContains(t, PingCheck(pingerFunc(failing("refused")))(context.Background()), "refused")
}

func TestRuntimeChecks(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }
