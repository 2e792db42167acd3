package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neverl0se/forgeModsConflictMediator/internal/domain"
	"github.com/neverl0se/forgeModsConflictMediator/internal/presenter"
	"github.com/neverl0se/forgeModsConflictMediator/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const overlapBody = `{"message":"Mixin apply failed: alpha.mixin.FooMixin conflicts with beta.mixin.FooMixin"}`

func newTestApp(t *testing.T, env map[string]string) *App {
	t.Helper()
	t.Setenv("REGISTRY_PATH", filepath.Join(t.TempDir(), "config", registry.DefaultFileName))
	t.Setenv("PRESENTER", "queue")
	t.Setenv("OPERATOR_TOKEN", "")
	t.Setenv("COMPONENTS_FILE", "")
	t.Setenv("RATE_LIMIT_RPS", "1000")
	t.Setenv("RATE_LIMIT_BURST", "1000")
	for k, v := range env {
		t.Setenv(k, v)
	}

	app := NewApp(nil, zap.NewNop())
	app.Reporter.Start()
	t.Cleanup(app.Close)
	return app
}

func do(t *testing.T, app *App, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v), rec.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	do(t, app, http.MethodPost, "/v1/failures/analyze", overlapBody)
	rec = do(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "conflict_mediator_http_requests_total")
}

func TestStatus(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Contains(t, body, "build")
	assert.EqualValues(t, 0, body["pending_decisions"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodPost, "/v1/failures/analyze", overlapBody)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Records []domain.ConflictRecord `json:"records"`
	}](t, rec)
	require.Len(t, body.Records, 1)
	assert.Equal(t, domain.ConflictKindPatchOverlap, body.Records[0].Kind)
	assert.Equal(t, 0, app.Registry.Snapshot().Count())
}

func TestAnalyzeEndpoint_BadBody(t *testing.T) {
	app := newTestApp(t, nil)
	rec := do(t, app, http.MethodPost, "/v1/failures/analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportFailure_OperatorDecisionFlow(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodPost, "/v1/failures", overlapBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[map[string]string](t, rec)
	sessionID := accepted["session_id"]
	require.NotEmpty(t, sessionID)

	require.Eventually(t, func() bool { return app.Decisions.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec = do(t, app, http.MethodGet, "/v1/decisions/"+sessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[presenter.PendingDecision](t, rec)
	require.NotEmpty(t, pending.Options)
	assert.Equal(t, "Disable patch alpha.mixin.FooMixin from alpha", pending.Options[0].Label)

	rec = do(t, app, http.MethodPost, "/v1/decisions/"+sessionID, `{"selected":[99]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/decisions/"+sessionID, `{"selected":[0]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return do(t, app, http.MethodGet, "/v1/sessions/"+sessionID, "").Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	out := decode[domain.MediationOutcome](t, do(t, app, http.MethodGet, "/v1/sessions/"+sessionID, ""))
	assert.Equal(t, domain.OutcomeApplied, out.Status)
	assert.True(t, out.RestartRequired)
	assert.True(t, app.Registry.IsPatchDisabled("alpha.mixin.FooMixin"))

	_, err := os.Stat(app.Registry.Path())
	assert.NoError(t, err)
}

func TestReportFailure_SkipLeavesRegistryUntouched(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodPost, "/v1/failures", overlapBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	sessionID := decode[map[string]string](t, rec)["session_id"]
	require.Eventually(t, func() bool { return app.Decisions.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec = do(t, app, http.MethodPost, "/v1/decisions/"+sessionID+"/skip", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Eventually(t, func() bool {
		return do(t, app, http.MethodGet, "/v1/sessions/"+sessionID, "").Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	out := decode[domain.MediationOutcome](t, do(t, app, http.MethodGet, "/v1/sessions/"+sessionID, ""))
	assert.Equal(t, domain.OutcomeSkipped, out.Status)
	assert.Equal(t, 0, app.Registry.Snapshot().Count())

	rec = do(t, app, http.MethodPost, "/v1/decisions/"+sessionID+"/skip", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportFailure_HeadlessWait(t *testing.T) {
	app := newTestApp(t, map[string]string{"PRESENTER": "none"})

	rec := do(t, app, http.MethodPost, "/v1/failures?wait=true", overlapBody)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[domain.MediationOutcome](t, rec)
	assert.Equal(t, domain.OutcomeHeadless, out.Status)
	assert.Equal(t, 0, app.Registry.Snapshot().Count())
}

func TestReportFailure_EmptyDescriptor(t *testing.T) {
	app := newTestApp(t, nil)
	rec := do(t, app, http.MethodPost, "/v1/failures", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportText(t *testing.T) {
	app := newTestApp(t, map[string]string{"PRESENTER": "none"})
	trace := "java.lang.RuntimeException: boom\n" +
		"\tat gamma.mixin.RenderMixin.apply(RenderMixin.java:10)\n" +
		"\tat delta.mixin.WorldMixin.tick(WorldMixin.java:20)\n"

	rec := do(t, app, http.MethodPost, "/v1/failures/text?wait=true", trace)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[domain.MediationOutcome](t, rec)
	require.Len(t, out.Records, 1)
	assert.Equal(t, domain.ConflictKindUnknown, out.Records[0].Kind)

	rec = do(t, app, http.MethodPost, "/v1/failures/text", "   ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConflictSignal(t *testing.T) {
	app := newTestApp(t, map[string]string{"PRESENTER": "none"})

	rec := do(t, app, http.MethodPost, "/v1/conflict-signals?wait=true",
		`{"kind":"registry_collision","owner_a":"alpha","owner_b":"beta"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[domain.MediationOutcome](t, rec)
	assert.Equal(t, domain.ConflictKindRegistryCollision, out.Records[0].Kind)

	rec = do(t, app, http.MethodPost, "/v1/conflict-signals", `{"kind":"bogus","owner_a":"alpha"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/conflict-signals", `{"kind":"unknown"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistryEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodPost, "/v1/registry/owners/alpha/artifacts/advanced_ai", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["changed"])

	rec = do(t, app, http.MethodPost, "/v1/registry/owners/alpha/artifacts/advanced_ai", "")
	assert.Equal(t, false, decode[map[string]any](t, rec)["changed"])

	rec = do(t, app, http.MethodPost, "/v1/registry/patches/beta.mixin.BarMixin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	fresh := registry.New(app.Registry.Path(), nil)
	require.NoError(t, fresh.Load())
	assert.True(t, fresh.IsDisabled("alpha", "advanced_ai"))
	assert.True(t, fresh.IsPatchDisabled("beta.mixin.BarMixin"))

	rec = do(t, app, http.MethodDelete, "/v1/registry/owners/alpha/artifacts/advanced_ai", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, app, http.MethodDelete, "/v1/registry/patches/beta.mixin.BarMixin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/registry", "")
	snap := decode[registry.Snapshot](t, rec)
	assert.Equal(t, 0, snap.Count())
}

func TestComponentEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	rec := do(t, app, http.MethodPut, "/v1/components", `{"components":["alpha","beta","alpha"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"alpha", "beta"}, app.Catalog.LoadedComponents())

	rec = do(t, app, http.MethodPost, "/v1/components/gamma/artifacts", `{"artifacts":["ores","worldgen"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ores", "worldgen"}, app.Registry.RegisteredArtifacts("gamma"))

	rec = do(t, app, http.MethodGet, "/v1/components", "")
	body := decode[struct {
		Components []struct {
			ID        string   `json:"id"`
			Artifacts []string `json:"artifacts"`
		} `json:"components"`
	}](t, rec)
	require.Len(t, body.Components, 3)
	assert.Equal(t, "gamma", body.Components[2].ID)
	assert.Equal(t, []string{"ores", "worldgen"}, body.Components[2].Artifacts)
}

func TestComponentsManifestLoadedAtStartup(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "components.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte("components: [alpha, beta]\nartifacts:\n  alpha: [advanced_ai]\n"), 0o644))

	app := newTestApp(t, map[string]string{"COMPONENTS_FILE": manifest})

	assert.Equal(t, []string{"alpha", "beta"}, app.Catalog.LoadedComponents())
	assert.Equal(t, []string{"advanced_ai"}, app.Registry.RegisteredArtifacts("alpha"))
}

func TestMalformedRegistryDoesNotBlockStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), registry.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	app := newTestApp(t, map[string]string{"REGISTRY_PATH": path})

	assert.Equal(t, 0, app.Registry.Snapshot().Count())
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/health", "").Code)
}

func TestOperatorAuth(t *testing.T) {
	app := newTestApp(t, map[string]string{"OPERATOR_TOKEN": "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodGet, "/v1/registry", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodGet, "/v1/registry", "", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, app, http.MethodGet, "/v1/registry", "", "Authorization", "s3cret").Code)
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/v1/registry", "", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/health", "").Code)
}

func TestSessionsList(t *testing.T) {
	app := newTestApp(t, map[string]string{"PRESENTER": "none"})
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(t, app, http.MethodPost, "/v1/failures?wait=true", overlapBody).Code)
	}

	rec := do(t, app, http.MethodGet, "/v1/sessions?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Sessions []domain.MediationOutcome `json:"sessions"`
	}](t, rec)
	assert.Len(t, body.Sessions, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, app, http.MethodGet, "/v1/sessions/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, app, http.MethodGet, "/v1/sessions/00000000-0000-0000-0000-000000000001", "").Code)
}
