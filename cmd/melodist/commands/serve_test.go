package commands

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/melodist/pkg/observability"
	"github.com/Sumatoshi-tech/melodist/pkg/problem"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	rt, err := (&Globals{Quiet: true}).setup(observability.ModeServe)
	require.NoError(t, err)

	t.Cleanup(rt.shutdown)

	handler, err := newServeHandler(rt)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func post(t *testing.T, url, contentType, body string) (int, []byte) {
	t.Helper()

	resp, err := http.Post(url, contentType, strings.NewReader(body)) //nolint:noctx // test helper.
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(url) //nolint:noctx // test helper.
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

// TestServe_Solve verifies POST /solve returns the report.
func TestServe_Solve(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	status, body := post(t, srv.URL+"/solve?limit=1", "application/yaml", stepProblem)
	require.Equal(t, http.StatusOK, status, string(body))

	var rep problem.Report
	require.NoError(t, json.Unmarshal(body, &rep))
	require.Len(t, rep.Variants, 1)
	assert.Equal(t, solvedLine, rep.Variants[0].Text)

	status, body = get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "melodist_requests")
	assert.Contains(t, string(body), "melodist_solve")
}

// TestServe_SolveErrors verifies request faults map to client errors.
func TestServe_SolveErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	status, body := post(t, srv.URL+"/solve", "application/json", `{"line": "C"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.NotEmpty(t, er.Violations)

	status, _ = post(t, srv.URL+"/solve", "application/json", `{"line": "C", "instrument": "Kazoo", "constraints": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = post(t, srv.URL+"/solve?limit=x", "application/yaml", stepProblem)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = get(t, srv.URL+"/solve")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

// TestServe_Parse verifies POST /parse returns the summary.
func TestServe_Parse(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	status, body := post(t, srv.URL+"/parse", "application/json", `{"line": "<C-Major: I> C:4 D"}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"text":"<C-Major: I> qC:4 D"`)

	status, _ = post(t, srv.URL+"/parse", "application/json", `{"line": "C ["}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, srv.URL+"/parse", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

// TestServe_InstrumentsAndHealth verifies the catalog and probe endpoints.
func TestServe_InstrumentsAndHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	status, body := get(t, srv.URL+"/instruments?family=brass")
	require.Equal(t, http.StatusOK, status)

	var entries []instrumentEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Trumpet", entries[0].Name)

	status, _ = get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, status)

	status, body = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","checks":{"catalog":"ok"}}`, string(body))

	status, _ = get(t, srv.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, status)
}
