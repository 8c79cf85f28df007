package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerodb/internal/config"
	"aerodb/internal/dataerr"
	"aerodb/internal/ops"
)

type fakeCaller struct {
	name string
	args map[string]any
	out  any
	err  error
}

func (f *fakeCaller) Call(_ context.Context, name string, args map[string]any) (any, error) {
	f.name, f.args = name, args
	return f.out, f.err
}

func (f *fakeCaller) Describe() []ops.Description {
	return []ops.Description{{Name: "get", Doc: "Fetch one row by key."}}
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func routerConfig() *config.Config {
	return &config.Config{Server: config.ServerConfig{MaxBodyBytes: 64, HealthCheckTimeout: time.Second}}
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPIHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		kind     string
		internal bool
	}{
		{"schema", &dataerr.SchemaError{Entity: "planes"}, http.StatusBadRequest, "schema", false},
		{"clause kind", &dataerr.InvalidClauseKindError{Kind: "REGEX"}, http.StatusBadRequest, "invalid_clause_kind", false},
		{"argument", &dataerr.InvalidArgumentError{Operation: "get", Argument: "id", Reason: "is required"}, http.StatusBadRequest, "invalid_argument", false},
		{"unknown operation", &dataerr.UnknownOperationError{Name: "drop"}, http.StatusNotFound, "unknown_operation", false},
		{"not found", fmt.Errorf("lookup: %w", dataerr.ErrNotFound), http.StatusNotFound, "not_found", false},
		{"ambiguous", dataerr.ErrAmbiguousJoin, http.StatusConflict, "ambiguous_join", false},
		{"conflict", &dataerr.WriteConflictError{Entity: "clients", Attempts: 3}, http.StatusConflict, "write_conflict", false},
		{"internal", errors.New("dial tcp 10.0.0.5:3306: refused"), http.StatusInternalServerError, "internal", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := apiHandler(&fakeCaller{err: tt.err}, 64)
			req := httptest.NewRequest(http.MethodGet, "/api/get", nil)
			req.SetPathValue("op", "get")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Error.Kind)
			if tt.internal {
				assert.Equal(t, "internal error", body.Error.Message)
				assert.NotContains(t, rec.Body.String(), "10.0.0.5")
			} else {
				assert.Equal(t, tt.err.Error(), body.Error.Message)
			}
		})
	}
}

func TestRouter_DispatchesArguments(t *testing.T) {
	caller := &fakeCaller{out: map[string]any{"ok": true}}
	mux := buildRouter(routerConfig(), testLogger(), fakePinger{}, caller, nil)

	rec := serve(mux, http.MethodPost, "/api/full_stand_data", `{"stand_ids":[10,12]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "full_stand_data", caller.name)
	assert.Equal(t, []any{json.Number("10"), json.Number("12")}, caller.args["stand_ids"])
	assert.JSONEq(t, `{"operation":"full_stand_data","result":{"ok":true}}`, rec.Body.String())

	rec = serve(mux, http.MethodGet, "/api/client_projects?client_ids=1&client_ids=2&cols=a,b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"1", "2"}, caller.args["client_ids"])
	assert.Equal(t, "a,b", caller.args["cols"])

	rec = serve(mux, http.MethodPost, "/api/get", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, caller.args)
}

func TestRouter_RejectsBadBodies(t *testing.T) {
	mux := buildRouter(routerConfig(), testLogger(), fakePinger{}, &fakeCaller{}, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{"a":`, "invalid JSON"},
		{"not an object", `[1,2]`, "JSON object"},
		{"trailing data", `{} {}`, "trailing data"},
		{"too large", `{"name":"` + strings.Repeat("x", 100) + `"}`, "exceeds 64 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, http.MethodPost, "/api/add_client", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Contains(t, rec.Body.String(), `"kind":"invalid_argument"`)
		})
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	mux := buildRouter(routerConfig(), testLogger(), fakePinger{}, &fakeCaller{}, nil)
	rec := serve(mux, http.MethodDelete, "/api/get", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestRouter_ListsOperations(t *testing.T) {
	mux := buildRouter(routerConfig(), testLogger(), fakePinger{}, &fakeCaller{}, nil)
	rec := serve(mux, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"operations":[{"name":"get","doc":"Fetch one row by key.","write":false,"params":null}]}`, rec.Body.String())
}

func TestRouter_MetricsOnlyWhenEnabled(t *testing.T) {
	mux := buildRouter(routerConfig(), testLogger(), fakePinger{}, &fakeCaller{}, nil)
	rec := serve(mux, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryArgs(t *testing.T) {
	args, err := queryArgs(url.Values{
		"entity":  {"stands"},
		"clauses": {`[{"kind":"EQUAL","column":"CLIENT_ID","value":1}]`},
	})
	require.NoError(t, err)
	assert.Equal(t, "stands", args["entity"])
	assert.Equal(t, []any{map[string]any{"kind": "EQUAL", "column": "CLIENT_ID", "value": json.Number("1")}}, args["clauses"])

	_, err = queryArgs(url.Values{"clauses": {`[{"kind":`}})
	assert.ErrorContains(t, err, "argument clauses")
}

func TestHealthHandler(t *testing.T) {
	rec := serve(healthHandler(fakePinger{}, time.Second), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rec.Body.String())

	rec = serve(healthHandler(fakePinger{err: errors.New("conn refused")}, time.Second), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestHTTPRootSpanName(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/full_stand_data", "POST /api/{op}"},
		{http.MethodGet, "/api", "GET /api"},
		{http.MethodGet, "/health", "GET /health"},
		{http.MethodGet, "/favicon.ico", "GET /*"},
		{"", "/metrics", "HTTP /metrics"},
	}
	for _, tt := range tests {
		req := &http.Request{Method: tt.method, URL: &url.URL{Path: tt.path}}
		assert.Equal(t, tt.want, httpRootSpanName(req))
	}
	assert.Equal(t, "HTTP /*", httpRootSpanName(nil))
}

func TestWrapHTTPHandler_RateLimits(t *testing.T) {
	cfg := routerConfig()
	cfg.Server.RateLimitEnabled = true
	cfg.Server.RateLimitRPS = 0.001
	cfg.Server.RateLimitBurst = 1

	h := wrapHTTPHandler(cfg, testLogger(), buildRouter(cfg, testLogger(), fakePinger{}, &fakeCaller{}, nil))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodGet, "/health", "").Code)
}
