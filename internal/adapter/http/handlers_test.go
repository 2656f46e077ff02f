package adapthttp_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adapthttp "scaletrack/internal/adapter/http"
	"scaletrack/internal/adapter/memory"
	"scaletrack/internal/app"
)

type testEnv struct {
	server *httptest.Server
	db     *memory.DB
}

func newTestServer(t *testing.T, withAuth bool) *testEnv {
	t.Helper()

	db := memory.New()
	logger := zap.NewNop()
	registry := app.NewRegistry(db, nil, logger)
	authSvc := app.NewAuthService(memory.NewUserRepo(db), memory.NewSessionRepo(db), time.Hour)

	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html></html>"), 0o600))

	srv := adapthttp.New(registry, authSvc, adapthttp.OIDCConfig{}, !withAuth, webDir, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, db: db}
}

func (e *testEnv) do(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["ok"])
}

func TestSaveThenFetchMonth(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPut, "/api/records", map[string]any{
		"date": "2025-07-10", "value": 70.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	assert.NotEmpty(t, created["id"])

	resp = env.do(t, http.MethodGet, "/api/records?date=2025-07-10&granularity=month", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "2025-07", body["periodKey"])
	records, ok := body["records"].([]any)
	require.True(t, ok)
	require.Len(t, records, 1)
}

func TestSaveConflictReturnsExistingRecord(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPut, "/api/records", map[string]any{
		"date": "2025-07-10", "value": 70.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/records", map[string]any{
		"date": "2025-07-10", "value": 69.0,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	existing, ok := body["existing"].(map[string]any)
	require.True(t, ok, "conflict response carries the existing record")
	assert.Equal(t, 70.5, existing["value"])
}

func TestOverwriteAfterConflict(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPut, "/api/records", map[string]any{
		"date": "2025-07-10", "value": 70.5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/records", map[string]any{
		"date": "2025-07-10", "value": 69.0,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	existing := decodeBody(t, resp)["existing"].(map[string]any)
	id := existing["id"].(string)

	resp = env.do(t, http.MethodPost, "/api/records/"+id+"/overwrite", map[string]any{
		"date": "2025-07-10", "value": 69.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 69.0, decodeBody(t, resp)["value"])
}

func TestOverwriteUnknownRecord(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPost, "/api/records/missing/overwrite", map[string]any{
		"date": "2025-07-10", "value": 69.0,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"malformed date", map[string]any{"date": "07/10/2025", "value": 70.0}},
		{"zero value", map[string]any{"date": "2025-07-10", "value": 0}},
		{"negative value", map[string]any{"date": "2025-07-10", "value": -5.0}},
		{"body fat out of range", map[string]any{"date": "2025-07-10", "value": 70.0, "bodyFat": 140.0}},
	}

	env := newTestServer(t, false)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPut, "/api/records", tc.payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestFetchWithUnitConversion(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPut, "/api/records", map[string]any{
		"date": "2025-07-10", "value": 100.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/records?date=2025-07-10&granularity=month&unit=lb", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := decodeBody(t, resp)["records"].([]any)
	require.Len(t, records, 1)
	value := records[0].(map[string]any)["value"].(float64)
	assert.InDelta(t, 220.46, value, 0.01)
}

func TestFetchYearAverages(t *testing.T) {
	env := newTestServer(t, false)

	for _, day := range []string{"2025-06-01", "2025-06-15", "2025-07-10"} {
		resp := env.do(t, http.MethodPut, "/api/records", map[string]any{"date": day, "value": 70.0})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := env.do(t, http.MethodGet, "/api/records?date=2025-07-10&granularity=year", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "2025", body["periodKey"])
	averages, ok := body["averages"].([]any)
	require.True(t, ok)
	assert.Len(t, averages, 2)
}

func TestFetchRejectsBadGranularity(t *testing.T) {
	env := newTestServer(t, false)
	resp := env.do(t, http.MethodGet, "/api/records?date=2025-07-10&granularity=week", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewRoundTrip(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPut, "/api/view", map[string]any{
		"date": "2025-06-15", "granularity": "year",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "2025-06-15", body["date"])
	assert.Equal(t, "year", body["granularity"])
}

func TestReset(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodPut, "/api/view", map[string]any{
		"date": "2025-06-15", "granularity": "year",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/records/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "month", decodeBody(t, resp)["granularity"])
}

func TestRecordsRequireAuth(t *testing.T) {
	env := newTestServer(t, true)

	resp := env.do(t, http.MethodGet, "/api/records", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFlow(t *testing.T) {
	env := newTestServer(t, true)

	resp := env.do(t, http.MethodPost, "/api/auth/setup", map[string]any{
		"username": "ada", "password": "hunter2!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "ada", "password": "hunter2!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	require.NotNil(t, session, "login sets a session cookie")

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/records?date=2025-07-10", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestServer(t, true)

	resp := env.do(t, http.MethodPost, "/api/auth/setup", map[string]any{
		"username": "ada", "password": "hunter2!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "ada", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSetupRefusedOnceUserExists(t *testing.T) {
	env := newTestServer(t, true)

	resp := env.do(t, http.MethodPost, "/api/auth/setup", map[string]any{
		"username": "ada", "password": "hunter2!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/setup", map[string]any{
		"username": "eve", "password": "letmein!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthConfigReportsSSODisabled(t *testing.T) {
	env := newTestServer(t, true)

	resp := env.do(t, http.MethodGet, "/api/auth/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["sso_enabled"])
}

func TestSPAFallbackServesIndex(t *testing.T) {
	env := newTestServer(t, false)

	resp := env.do(t, http.MethodGet, "/some/client/route", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
