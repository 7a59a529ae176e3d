package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/blueprint/internal/blueprint"
	"github.com/dusk-indust/blueprint/internal/engine"
	"github.com/dusk-indust/blueprint/internal/gateway"
	"github.com/dusk-indust/blueprint/internal/store"
)

type stubGateway struct {
	err    error
	report string
}

func (g *stubGateway) Regenerate(_ context.Context, req gateway.RegenerateRequest) (*gateway.RegenerateResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	resp := &gateway.RegenerateResponse{}
	for _, s := range req.Targets {
		resp.Drafts = append(resp.Drafts, gateway.Draft{Stage: s, Text: "drafted " + s.String()})
	}
	return resp, nil
}

func (g *stubGateway) Execute(_ context.Context, _ gateway.ExecuteRequest) (*gateway.ExecuteResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.ExecuteResponse{TaskID: "t-1", Text: g.report}, nil
}

func seedProject(id string, active blueprint.Stage) blueprint.Project {
	p := blueprint.NewProject(id, "Shop", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	p.Blueprint.Overview = "An online shop"
	p.Blueprint.Sections = []blueprint.Section{{ID: "cart", Title: "Cart"}}
	for _, s := range blueprint.Stages() {
		if s.Order() < active.Order() {
			p.ApprovedStages = p.ApprovedStages.Add(s)
		}
	}
	p.Blueprint.ActiveStage = active
	return p
}

func newTestRouter(t *testing.T, gw gateway.Gateway, seed ...blueprint.Project) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng := engine.New(store.NewMemStore(seed...), gw)
	_, err := eng.LoadProjects(context.Background())
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return BuildRouter(RouterDeps{ServiceName: "blueprint", Version: "test", Engine: eng}), eng
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var out map[string]any
	if ct := rr.Header().Get("Content-Type"); len(ct) >= 16 && ct[:16] == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr, out
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil, seedProject("p1", blueprint.StageProduct))

	rr, body := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.EqualValues(t, 1, body["projects"])
}

func TestListAndGet(t *testing.T) {
	r, _ := newTestRouter(t, nil, seedProject("p1", blueprint.StageProduct))

	rr, body := do(t, r, http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	projects := body["projects"].([]any)
	require.Len(t, projects, 1)
	row := projects[0].(map[string]any)
	assert.Equal(t, "p1", row["id"])
	assert.Equal(t, "product", row["activeStage"])
	assert.Equal(t, true, row["canApprove"])

	rr, body = do(t, r, http.MethodGet, "/api/v1/projects/p1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	project := body["project"].(map[string]any)
	assert.Equal(t, "Shop", project["title"])

	rr, body = do(t, r, http.MethodGet, "/api/v1/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, body["ok"])
}

func TestCreateProject(t *testing.T) {
	r, eng := newTestRouter(t, nil)

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects", map[string]string{"id": "new", "title": "  Blog  "})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Blog", body["project"].(map[string]any)["title"])
	_, ok := eng.Project("new")
	assert.True(t, ok)

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects", map[string]string{"id": "new", "title": "Again"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects", map[string]string{"title": " "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateFieldAndSave(t *testing.T) {
	r, eng := newTestRouter(t, nil, seedProject("p1", blueprint.StageProduct))

	rr, body := do(t, r, http.MethodPatch, "/api/v1/projects/p1/fields/problems", map[string]any{"text": "Lost carts"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["dirty"])
	p, _ := eng.Project("p1")
	assert.Equal(t, "Lost carts", p.Blueprint.Problems)

	rr, body = do(t, r, http.MethodPost, "/api/v1/projects/p1/save", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, body["dirty"])

	rr, _ = do(t, r, http.MethodPatch, "/api/v1/projects/p1/fields/colour", map[string]any{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRenameSectionAndStage(t *testing.T) {
	r, _ := newTestRouter(t, nil, seedProject("p1", blueprint.StageProduct))

	rr, body := do(t, r, http.MethodPatch, "/api/v1/projects/p1", map[string]string{"title": "Storefront"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Storefront", body["project"].(map[string]any)["title"])

	rr, _ = do(t, r, http.MethodPut, "/api/v1/projects/p1/sections/cart", map[string]bool{"completed": true})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr, _ = do(t, r, http.MethodPut, "/api/v1/projects/p1/sections/nope", map[string]bool{"completed": true})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, body = do(t, r, http.MethodPut, "/api/v1/projects/p1/stage", map[string]string{"stage": "design"})
	require.Equal(t, http.StatusOK, rr.Code)
	bp := body["project"].(map[string]any)["blueprint"].(map[string]any)
	assert.Equal(t, "design", bp["activeStage"])

	rr, _ = do(t, r, http.MethodPut, "/api/v1/projects/p1/stage", map[string]string{"stage": "launch"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApprove(t *testing.T) {
	r, eng := newTestRouter(t, &stubGateway{}, seedProject("p1", blueprint.StageProduct))

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects/p1/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "product", body["approved"])
	assert.Equal(t, "dataModel", body["activeStage"])
	assert.Len(t, body["regenerated"], 4)

	p, _ := eng.Project("p1")
	assert.Equal(t, "drafted dataModel", p.Blueprint.DataModel)
	assert.False(t, eng.IsDirty("p1"))

	rr, body = do(t, r, http.MethodGet, "/api/v1/projects/p1/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	st := body["status"].(map[string]any)
	assert.Equal(t, "dataModel", st["activeStage"])
	assert.EqualValues(t, 1, st["approvedCount"])
}

func TestApprove_Degraded(t *testing.T) {
	r, eng := newTestRouter(t, &stubGateway{err: errors.New("connection refused")}, seedProject("p1", blueprint.StageProduct))

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects/p1/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["error"], "connection refused")
	assert.Len(t, body["stale"], 4)

	p, _ := eng.Project("p1")
	assert.True(t, p.ApprovedStages.Has(blueprint.StageProduct))
	assert.Equal(t, 4, p.StaleStages.Len())
}

func TestApprove_Rejected(t *testing.T) {
	r, _ := newTestRouter(t, &stubGateway{}, seedProject("p1", blueprint.StageExport))

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects/p1/approve", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, body["error"], "terminal")

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMarkStaleAndRegenerate(t *testing.T) {
	r, eng := newTestRouter(t, &stubGateway{}, seedProject("p1", blueprint.StageDesign))

	rr, _ := do(t, r, http.MethodPost, "/api/v1/projects/p1/regenerate", nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "nothing is stale yet")

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/p1/stale", map[string][]string{"stages": {"sections"}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects/p1/regenerate", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, []any{"sections"}, body["regenerated"])

	p, _ := eng.Project("p1")
	assert.Zero(t, p.StaleStages.Len())

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/p1/stale", map[string][]string{"stages": {"product"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExecute(t *testing.T) {
	r, _ := newTestRouter(t, &stubGateway{report: "done\nOUTCOME: COMPLETE - shipped"},
		seedProject("p1", blueprint.StageExport), seedProject("p2", blueprint.StageDesign))

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects/p1/execute", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "complete", body["outcome"])
	assert.Equal(t, "shipped", body["reason"])
	assert.Equal(t, "t-1", body["taskId"])

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/p2/execute", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestExecute_GatewayFailure(t *testing.T) {
	r, _ := newTestRouter(t, &stubGateway{err: errors.New("executor down")}, seedProject("p1", blueprint.StageExport))

	rr, _ := do(t, r, http.MethodPost, "/api/v1/projects/p1/execute", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestExportFormats(t *testing.T) {
	r, _ := newTestRouter(t, nil, seedProject("p1", blueprint.StageDesign))

	rr, _ := do(t, r, http.MethodGet, "/api/v1/projects/p1/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# Shop\n")

	rr, body := do(t, r, http.MethodGet, "/api/v1/projects/p1/export?format=json", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "design", body["activeStage"])

	rr, _ = do(t, r, http.MethodGet, "/api/v1/projects/p1/export?format=mermaid", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "graph LR")

	rr, _ = do(t, r, http.MethodGet, "/api/v1/projects/p1/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDelete(t *testing.T) {
	r, eng := newTestRouter(t, nil, seedProject("p1", blueprint.StageProduct))

	rr, _ := do(t, r, http.MethodDelete, "/api/v1/projects/p1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, eng.Projects())

	rr, _ = do(t, r, http.MethodDelete, "/api/v1/projects/p1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// heldGateway blocks Regenerate until release is closed.
type heldGateway struct {
	stubGateway
	started chan struct{}
	release chan struct{}
}

func (g *heldGateway) Regenerate(ctx context.Context, req gateway.RegenerateRequest) (*gateway.RegenerateResponse, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.stubGateway.Regenerate(ctx, req)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestApprove_ConcurrentRequestsDoNotQueue(t *testing.T) {
	gw := &heldGateway{started: make(chan struct{}, 1), release: make(chan struct{})}
	r, eng := newTestRouter(t, gw,
		seedProject("p1", blueprint.StageProduct), seedProject("p2", blueprint.StageProduct))

	first := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/p1/approve", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		first <- rr.Code
	}()
	<-gw.started

	rr, body := do(t, r, http.MethodPatch, "/api/v1/projects/p2", map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, rr.Code, body)

	rr, body = do(t, r, http.MethodPost, "/api/v1/projects/p1/approve", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, body["error"], engine.ErrInFlight.Error())

	close(gw.release)
	assert.Equal(t, http.StatusOK, <-first)

	p, _ := eng.Project("p1")
	assert.Equal(t, blueprint.NewStageSet(blueprint.StageProduct), p.ApprovedStages)
	assert.Equal(t, blueprint.StageDataModel, p.Blueprint.ActiveStage)
	p2, _ := eng.Project("p2")
	assert.Equal(t, "Renamed", p2.Title)
}
