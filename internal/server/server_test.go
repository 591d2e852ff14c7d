package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/estately/internal/apperr"
	"github.com/smallbiznis/estately/internal/health"
	"github.com/smallbiznis/estately/internal/observability"
	"github.com/smallbiznis/estately/internal/ratelimit"
	"github.com/smallbiznis/estately/internal/tool"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticBucket struct {
	allowed bool
	keys    []string
}

func (b *staticBucket) Allow(_ context.Context, key string, _ float64, burst int) (*ratelimit.Result, error) {
	b.keys = append(b.keys, key)
	res := &ratelimit.Result{Allowed: b.allowed, Limit: burst}
	if !b.allowed {
		res.RetryAfter = 1500 * time.Millisecond
	}
	return res, nil
}

func newTestServer(t *testing.T, bucket ratelimit.Bucket, checker *health.Checker) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	limiter := ratelimit.NewPublicToolLimiter(ratelimit.PublicParams{Bucket: bucket, Log: log})
	return NewServer(ServerParams{
		Gin:        NewEngine(observability.Config{}, nil),
		Dispatcher: tool.New(tool.Params{Log: log}),
		Limiter:    limiter,
		Health:     checker,
	})
}

func do(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) tool.Result {
	t.Helper()
	var result tool.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return result
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(s, http.MethodGet, "/v1/tools", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tools []tool.Descriptor `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Tools, 14)
}

func TestCallToolStatusMirrorsKind(t *testing.T) {
	s := newTestServer(t, nil, nil)
	caller := map[string]string{HeaderTenant: "100", HeaderUser: "200"}

	rec := do(s, http.MethodPost, "/v1/tools/unknown_tool", "{}", caller)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	result := decodeResult(t, rec)
	assert.False(t, result.Success)
	assert.Equal(t, apperr.KindNotFound, result.Error.Kind)

	rec = do(s, http.MethodPost, "/v1/tools/get_leads", "{}", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(s, http.MethodPost, "/v1/tools/get_leads", `{"status": "open"}`, caller)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	result = decodeResult(t, rec)
	assert.Equal(t, "status", result.Error.Field)
}

func TestIdentityHeaders(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(s, http.MethodGet, "/v1/tools", "", map[string]string{HeaderTenant: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), HeaderTenant)

	rec = do(s, http.MethodGet, "/v1/tools", "", map[string]string{HeaderUser: "200"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallToolRejectsOversizedBody(t *testing.T) {
	s := newTestServer(t, nil, nil)

	body := `{"query": "` + strings.Repeat("a", maxToolBody) + `"}`
	rec := do(s, http.MethodPost, "/v1/tools/get_properties", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonymousCallsAreRateLimited(t *testing.T) {
	bucket := &staticBucket{allowed: false}
	s := newTestServer(t, bucket, nil)

	rec := do(s, http.MethodPost, "/v1/tools/get_properties", "{}", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Len(t, bucket.keys, 1)
	assert.True(t, strings.HasPrefix(bucket.keys[0], "estately:public:"))

	// authenticated callers skip the bucket
	rec = do(s, http.MethodPost, "/v1/tools/unknown_tool", "{}", map[string]string{HeaderTenant: "100", HeaderUser: "200"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, bucket.keys, 1)
}

func TestAllowedAnonymousCallReachesDispatcher(t *testing.T) {
	bucket := &staticBucket{allowed: true}
	s := newTestServer(t, bucket, nil)

	rec := do(s, http.MethodPost, "/v1/tools/search_nearby", `{"lon": 31.2}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "lat", decodeResult(t, rec).Error.Field)
}

func TestHealth(t *testing.T) {
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	checker := health.New(health.Params{DB: conn, Log: zap.NewNop()})
	s := newTestServer(t, nil, checker)

	checker.Check(context.Background())
	rec := do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	require.NoError(t, sqlDB.Close())
	checker.Check(context.Background())

	rec = do(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := do(s, http.MethodGet, "/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}
