package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"godfi/app"
	"godfi/domain/core"
	"godfi/domain/cutoff"
	"godfi/internal"
)

// stubRunner returns a canned result, or the estimator gate error when the
// request names MLR, without running any simulation. It records the last
// request so tests can inspect the values the handler forwarded.
type stubRunner struct {
	result *app.Result
	last   *app.Request
}

func (r *stubRunner) Run(ctx context.Context, req app.Request) (*app.Result, error) {
	*r.last = req
	if strings.EqualFold(req.Estimator, "MLR") {
		return nil, core.NewEstimatorError(req.Estimator)
	}
	res := *r.result
	if req.KeepReplications {
		res.Levels = []cutoff.LevelRun{{Level: 0}, {Level: 1}}
	}
	return &res, nil
}

type memoryRepo struct {
	runs map[core.RunID]*cutoff.Run
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{runs: make(map[core.RunID]*cutoff.Run)}
}

func (m *memoryRepo) Save(ctx context.Context, run *cutoff.Run) error {
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id core.RunID) (*cutoff.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, core.ErrRunNotFound)
	}
	return run, nil
}

func cannedRun() *cutoff.Run {
	return &cutoff.Run{
		ID:         core.NewRunID(),
		ModelText:  "F1 =~ 0.7*x1",
		SampleSize: 400,
		Reps:       500,
		Seed:       99,
		Estimator:  "ML",
		Table: cutoff.Table{
			SampleSize: 400,
			Reps:       500,
			Estimator:  "ML",
			Rows: []cutoff.Row{
				{Level: 0, SRMR: cutoff.IndexCutoff{Value: 0.03, Power: 0.95},
					RMSEA: cutoff.IndexCutoff{Value: 0.02, Power: 0.95},
					CFI:   cutoff.IndexCutoff{Value: 0.99, Power: 0.95}},
				{Level: 1, Magnitude: 0.42,
					SRMR:  cutoff.IndexCutoff{Value: 0.05, Power: 0.95},
					RMSEA: cutoff.IndexCutoff{Value: 0.05, Power: 0.90},
					CFI:   cutoff.IndexCutoff{None: true}},
			},
		},
		CreatedAt: core.Now(),
	}
}

func newTestServer(repo *memoryRepo) (*Server, *cutoff.Run, *app.Request) {
	run := cannedRun()
	last := &app.Request{}
	runner := &stubRunner{
		result: &app.Result{Run: run, Warnings: []string{"estimator warning"}},
		last:   last,
	}
	srv := NewServer(runner, repo, internal.NewDefaultLogger(), Defaults{Reps: 250, Parallel: 4})
	return srv, run, last
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(newMemoryRepo())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostCutoffs_ReturnsAndPersistsRun(t *testing.T) {
	repo := newMemoryRepo()
	srv, run, _ := newTestServer(repo)

	body := `{"manual": true, "model": "F1 =~ .7*x1", "sample_size": 400}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cutoffs", strings.NewReader(body))
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ID       string   `json:"id"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, run.ID.String(), resp.ID)
	assert.Len(t, resp.Warnings, 1)

	_, ok := repo.runs[run.ID]
	assert.True(t, ok, "run should be persisted after a successful computation")
}

func TestPostCutoffs_AppliesServerDefaults(t *testing.T) {
	srv, _, last := newTestServer(newMemoryRepo())

	body := `{"manual": true, "model": "F1 =~ .7*x1", "sample_size": 400}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cutoffs", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 250, last.Reps, "unset reps should fall back to the configured default")
	assert.Equal(t, 4, last.Parallel)

	// An explicit replication count wins over the default.
	body = `{"manual": true, "model": "F1 =~ .7*x1", "sample_size": 400, "reps": 32}`
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cutoffs", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 32, last.Reps)
}

func TestPostCutoffs_KeepReplications(t *testing.T) {
	srv, _, last := newTestServer(newMemoryRepo())

	body := `{"manual": true, "model": "F1 =~ .7*x1", "sample_size": 400, "keep_replications": true}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cutoffs", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, last.KeepReplications)

	var resp struct {
		Levels []cutoff.LevelRun `json:"levels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Levels, 2, "requested replication dataset missing from the response")
}

func TestPostCutoffs_RejectsMLR(t *testing.T) {
	srv, _, _ := newTestServer(newMemoryRepo())

	body := `{"manual": true, "model": "F1 =~ .7*x1", "sample_size": 400, "estimator": "MLR"}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cutoffs", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNSUPPORTED_ESTIMATOR", resp["code"])
}

func TestPostCutoffs_RejectsMalformedJSON(t *testing.T) {
	srv, _, _ := newTestServer(newMemoryRepo())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cutoffs", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	repo := newMemoryRepo()
	srv, run, _ := newTestServer(repo)
	require.NoError(t, repo.Save(context.Background(), run))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got cutoff.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Len(t, got.Table.Rows, 2)
}

func TestGetRun_UnknownID(t *testing.T) {
	srv, _, _ := newTestServer(newMemoryRepo())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RUN_NOT_FOUND", resp["code"])
}

func TestGetRun_PersistenceDisabled(t *testing.T) {
	run := cannedRun()
	runner := &stubRunner{result: &app.Result{Run: run}, last: &app.Request{}}
	srv := NewServer(runner, nil, internal.NewDefaultLogger(), Defaults{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID.String(), nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PERSISTENCE_DISABLED", resp["code"])
}

func TestRunReport_RendersHTMLTable(t *testing.T) {
	repo := newMemoryRepo()
	srv, run, _ := newTestServer(repo)
	require.NoError(t, repo.Save(context.Background(), run))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID.String()+"/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "Level-0")
	assert.Contains(t, body, "NONE")
}
