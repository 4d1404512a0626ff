package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencanvas/canvasd/internal/canvas"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	store, err := canvas.NewStore(t.TempDir(), canvas.NewInMemoryStateBackend(), zap.NewNop())
	require.NoError(t, err)
	srv := NewServer(store, nil, nil, zap.NewNop(), ServerConfig{})
	return srv, srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))
}

func TestFileLifecycleOverHTTP(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/files", map[string]any{
		"name":        "src/main.py",
		"description": "entrypoint",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created canvas.NodeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "main", created.ID)

	rec = doJSON(t, h, http.MethodPut, "/files/"+created.ID+"/content", map[string]any{
		"content": "print('hi')",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/files/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view canvas.FileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "print('hi')", view.Content)
	assert.Equal(t, "python", view.FileType)
	assert.Equal(t, "entrypoint", view.Description)

	rec = doJSON(t, h, http.MethodDelete, "/files/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/files/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicatePathConflictPayload(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "main.py"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "main.py"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "duplicate_path", payload["code"])
	assert.Equal(t, "main", payload["existingId"])
}

func TestInvalidPathRejected(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "../escape.py"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "invalid_path", payload["code"])
}

func TestValidationFailure(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/files", map[string]any{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "validation_failed", payload["code"])
}

func TestPrepareWorkspaceInlinePlan(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/workspace/prepare", map[string]any{
		"title":      "Todo App",
		"tech_stack": []string{"Python"},
		"plan": map[string]any{
			"files": []map[string]any{
				{"file_name": "backend/api.py", "description": "api"},
				{"file_name": "backend/db.py"},
			},
			"edges": []map[string]any{
				{"from": "api", "to": "db"},
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Nodes []canvas.NodeRecord `json:"nodes"`
		Edges []canvas.Edge       `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Nodes, 2)
	require.Len(t, resp.Edges, 1)
	assert.Equal(t, "api", resp.Edges[0].From)
	assert.Equal(t, "db", resp.Edges[0].To)
}

func TestPrepareWorkspaceFallbackWithoutPlanner(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/workspace/prepare", map[string]any{
		"title":    "Notes",
		"features": []string{"Editing"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Nodes []canvas.NodeRecord `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Nodes, 1)
	assert.Equal(t, "backend/editing.py", resp.Nodes[0].FileName)
}

type stubPlanner struct {
	plan canvas.RawPlan
	err  error
}

func (p *stubPlanner) Plan(_ context.Context, _ canvas.ProjectSpec) (canvas.RawPlan, error) {
	return p.plan, p.err
}

func TestPrepareWorkspaceUsesPlanner(t *testing.T) {
	store, err := canvas.NewStore(t.TempDir(), canvas.NewInMemoryStateBackend(), zap.NewNop())
	require.NoError(t, err)
	planner := &stubPlanner{plan: canvas.RawPlan{
		Files: []canvas.RawFileEntry{{FileName: "planned/app.py"}},
	}}
	srv := NewServer(store, planner, nil, zap.NewNop(), ServerConfig{})
	rec := doJSON(t, srv.Router(), http.MethodPost, "/workspace/prepare", map[string]any{
		"title": "Planned",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Nodes []canvas.NodeRecord `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Nodes, 1)
	assert.Equal(t, "planned/app.py", resp.Nodes[0].FileName)
}

func TestEdgeEndpointsOverHTTP(t *testing.T) {
	_, h := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "a.py"})
	doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "b.py"})

	rec := doJSON(t, h, http.MethodPost, "/edges", map[string]any{"from": "a", "to": "b"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var edge canvas.Edge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edge))
	assert.Equal(t, canvas.DefaultEdgeType, edge.Type)

	rec = doJSON(t, h, http.MethodPost, "/edges", map[string]any{"from": "a", "to": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/edges?from=a&to=b", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/edges", nil)
	var listing struct {
		Edges []canvas.Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Empty(t, listing.Edges)
}

func TestFolderCascadeOverHTTP(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "worker.py"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var file canvas.NodeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &file))

	rec = doJSON(t, h, http.MethodPost, "/folders", map[string]any{"name": "Jobs"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var folder canvas.NodeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &folder))

	rec = doJSON(t, h, http.MethodPut, "/files/"+file.ID+"/folder", map[string]any{"folderId": folder.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodDelete, "/folders/"+folder.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/files/"+file.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetadataRoundTripOverHTTP(t *testing.T) {
	_, h := newTestServer(t)
	doJSON(t, h, http.MethodPost, "/files", map[string]any{"name": "main.py"})

	rec := doJSON(t, h, http.MethodGet, "/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]canvas.NodeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Contains(t, doc, "main")

	rec = doJSON(t, h, http.MethodPut, "/metadata", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var after map[string]canvas.NodeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, doc, after)
}

func TestOrphansEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/workspace/orphans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Orphans []string `json:"orphans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Empty(t, payload.Orphans)
}
