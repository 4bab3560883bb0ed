package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var trail []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, trail)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := hit(h, "/", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = hit(h, "/", "", map[string]string{"X-Request-ID": strings.Repeat("x", 200)})
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := zap.New(core)

	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(LogRequests()))
	router.HandleFunc("/product/{id}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Inside")
		w.WriteHeader(http.StatusTeapot)
	})

	h := Wrap(router, RequestID(), InjectLogger(lg))
	hit(h, "/product/42", "", map[string]string{"X-Request-ID": "req-1"})

	require.Equal(t, 2, logs.Len())
	inside := logs.All()[0]
	assert.Equal(t, "Inside", inside.Message)
	assert.Equal(t, "req-1", inside.ContextMap()["request_id"])

	request := logs.All()[1].ContextMap()
	assert.Equal(t, "/product/{id}", request["route"])
	assert.Equal(t, int64(http.StatusTeapot), request["status"])
	assert.Equal(t, "req-1", request["request_id"])
	assert.NotContains(t, request, "trace_id")
}

func TestLogRequests_TraceID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x01}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})

	h := LogRequests()(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	ctx := trace.ContextWithSpanContext(zctx.Base(req.Context(), zap.New(core)), sc)
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, traceID.String(), logs.All()[0].ContextMap()["trace_id"])
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := hit(h, "/checkout/confirm", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = hit(h, "/api/products", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"error","message":"An unexpected error occurred"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowOrigins: []string{"https://shop.example.com"}, AllowCredentials: true, MaxAge: 600})(okHandler())

	w := hit(h, "/api/products", "", map[string]string{"Origin": "https://SHOP.example.com"})
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	w = hit(h, "/api/products", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// Storefront routes are same-origin only.
	w = hit(h, "/cart", "", map[string]string{"Origin": "https://shop.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Vary"))

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_AnyOrigin(t *testing.T) {
	h := CORS(CORSConfig{AllowOrigins: []string{"*"}})(okHandler())

	w := hit(h, "/api/products/1", "", map[string]string{"Origin": "https://anywhere.example"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Vary"))

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Max-Age"))
}
