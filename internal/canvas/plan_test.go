package canvas

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseRawPlanShapes(t *testing.T) {
	payloads := []string{
		`{"files": [{"file_name": "main.py"}], "edges": []}`,
		`{"nodes": [{"path": "main.py"}]}`,
		`[{"name": "main.py"}]`,
		`["main.py"]`,
	}
	for _, payload := range payloads {
		plan, err := ParseRawPlan([]byte(payload))
		if err != nil {
			t.Fatalf("ParseRawPlan(%s): %v", payload, err)
		}
		if len(plan.Files) != 1 {
			t.Fatalf("ParseRawPlan(%s): got %d files", payload, len(plan.Files))
		}
	}
}

func TestParseRawPlanEmpty(t *testing.T) {
	if _, err := ParseRawPlan([]byte(`{"something": "else"}`)); !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
	if _, err := ParseRawPlan([]byte(`not json`)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSanitizePlanResolvesEdgeVocabulary(t *testing.T) {
	raw := RawPlan{
		Files: []RawFileEntry{
			{ID: "auth", FileName: "backend/auth.py", Description: "auth module"},
			{Label: "User Store"},
		},
		Edges: []RawEdgeEntry{
			{Source: "AUTH", Target: "user store"},
			{From: "backend/auth.py", To: "User Store.py", Type: "imports"},
			{From: "auth", To: "auth"},
			{From: "nowhere", To: "auth"},
		},
	}
	plan := SanitizePlan(raw, ProjectSpec{TechStack: []string{"Python"}}, nil)
	if len(plan.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(plan.Files))
	}
	if plan.Files[0].ID != "auth" || plan.Files[0].Path != "backend/auth.py" {
		t.Fatalf("unexpected first file: %+v", plan.Files[0])
	}
	if plan.Files[1].ID != "user_store" || plan.Files[1].Path != "User Store.py" {
		t.Fatalf("unexpected second file: %+v", plan.Files[1])
	}
	if len(plan.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %+v", len(plan.Edges), plan.Edges)
	}
	if plan.Edges[0].Type != DefaultEdgeType {
		t.Fatalf("expected default edge type, got %q", plan.Edges[0].Type)
	}
	if plan.Edges[0].From != "auth" || plan.Edges[0].To != "user_store" {
		t.Fatalf("unexpected edge endpoints: %+v", plan.Edges[0])
	}
	if plan.Edges[1].Type != "imports" {
		t.Fatalf("expected imports edge, got %+v", plan.Edges[1])
	}
}

func TestSanitizePlanDropsUnsafePaths(t *testing.T) {
	raw := RawPlan{Files: []RawFileEntry{
		{FileName: "../escape.py"},
		{FileName: "ok.py"},
		{FileName: ""},
	}}
	plan := SanitizePlan(raw, ProjectSpec{}, nil)
	if len(plan.Files) != 1 || plan.Files[0].Path != "ok.py" {
		t.Fatalf("unexpected surviving files: %+v", plan.Files)
	}
}

func TestSanitizePlanDuplicatePathAliasesToSurvivor(t *testing.T) {
	raw := RawPlan{
		Files: []RawFileEntry{
			{ID: "first", FileName: "shared/util.py"},
			{ID: "second", FileName: "shared/util.py", Label: "Utility Helpers"},
			{ID: "other", FileName: "main.py"},
		},
		Edges: []RawEdgeEntry{
			{From: "second", To: "other"},
			{From: "Utility Helpers", To: "other"},
		},
	}
	plan := SanitizePlan(raw, ProjectSpec{TechStack: []string{"Python"}}, nil)
	if len(plan.Files) != 2 {
		t.Fatalf("expected duplicate dropped, got %+v", plan.Files)
	}
	// Both edge spellings resolve to the surviving node and collapse into
	// one edge.
	if len(plan.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %+v", plan.Edges)
	}
	if plan.Edges[0].From != "first" || plan.Edges[0].To != "other" {
		t.Fatalf("edge did not alias to survivor: %+v", plan.Edges[0])
	}
}

func TestSanitizePlanChainsWhenNoEdgesSurvive(t *testing.T) {
	raw := RawPlan{Files: []RawFileEntry{
		{FileName: "a.py"}, {FileName: "b.py"}, {FileName: "c.py"},
	}}
	plan := SanitizePlan(raw, ProjectSpec{}, nil)
	want := []Edge{
		{From: "a", To: "b", Type: DefaultEdgeType},
		{From: "b", To: "c", Type: DefaultEdgeType},
	}
	if !reflect.DeepEqual(plan.Edges, want) {
		t.Fatalf("unexpected chain: %+v", plan.Edges)
	}
}

func TestSanitizePlanFallbackFromFeatures(t *testing.T) {
	spec := ProjectSpec{
		Title:     "Todo App",
		TechStack: []string{"Python"},
		Features:  []string{"User Login", "Task List"},
	}
	plan := SanitizePlan(RawPlan{}, spec, nil)
	if len(plan.Files) != 2 {
		t.Fatalf("expected one file per feature, got %+v", plan.Files)
	}
	if plan.Files[0].Path != "backend/user_login.py" || plan.Files[1].Path != "backend/task_list.py" {
		t.Fatalf("unexpected fallback paths: %+v", plan.Files)
	}
	if len(plan.Edges) != 1 {
		t.Fatalf("expected chained fallback, got %+v", plan.Edges)
	}
}

func TestSanitizePlanFallbackNeverEmpty(t *testing.T) {
	plan := SanitizePlan(RawPlan{}, ProjectSpec{}, nil)
	if len(plan.Files) != 1 {
		t.Fatalf("expected single entrypoint, got %+v", plan.Files)
	}
	if plan.Files[0].Path != "backend/main.py" {
		t.Fatalf("unexpected entrypoint path: %+v", plan.Files[0])
	}
}

func TestSanitizePlanFrontendFallbackDirectory(t *testing.T) {
	spec := ProjectSpec{TechStack: []string{"React"}, Features: []string{"Landing Page"}}
	plan := SanitizePlan(RawPlan{}, spec, nil)
	if plan.Files[0].Path != "frontend/landing_page.jsx" {
		t.Fatalf("unexpected frontend path: %+v", plan.Files[0])
	}
}

// Sanitizing a plan rebuilt from a sanitized plan's own output changes
// nothing.
func TestSanitizePlanIdempotent(t *testing.T) {
	raw := RawPlan{
		Files: []RawFileEntry{
			{Label: "User Auth!"},
			{FileName: "backend/db"},
		},
		Edges: []RawEdgeEntry{{From: "User Auth!", To: "backend/db"}},
	}
	spec := ProjectSpec{TechStack: []string{"Python"}}
	first := SanitizePlan(raw, spec, nil)

	again := RawPlan{}
	for _, f := range first.Files {
		again.Files = append(again.Files, RawFileEntry{ID: f.ID, FileName: f.Path, Description: f.Description})
	}
	for _, e := range first.Edges {
		again.Edges = append(again.Edges, RawEdgeEntry{From: e.From, To: e.To, Type: e.Type})
	}
	second := SanitizePlan(again, spec, nil)
	if !reflect.DeepEqual(first.Files, second.Files) {
		t.Fatalf("files not stable:\n%+v\n%+v", first.Files, second.Files)
	}
	if !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Fatalf("edges not stable:\n%+v\n%+v", first.Edges, second.Edges)
	}
}

func TestRawEntryUnmarshalTolerance(t *testing.T) {
	var entry RawFileEntry
	if err := json.Unmarshal([]byte(`{"filename": "x.py", "desc": "d", "extra": 7}`), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.FileName != "x.py" || entry.Description != "d" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	var edge RawEdgeEntry
	if err := json.Unmarshal([]byte(`{"src": "a", "dst": "b", "kind": "calls"}`), &edge); err != nil {
		t.Fatalf("unmarshal edge: %v", err)
	}
	if edge.Source != "a" || edge.Target != "b" || edge.Type != "calls" {
		t.Fatalf("unexpected edge: %+v", edge)
	}
}
