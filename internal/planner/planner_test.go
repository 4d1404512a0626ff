package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanvas/canvasd/internal/canvas"
)

func TestExtractPayloadFenced(t *testing.T) {
	response := "Here is the plan:\n```json\n{\"files\": [{\"file_name\": \"main.py\"}]}\n```\nEnjoy."
	payload := ExtractPayload(response)
	plan, err := canvas.ParseRawPlan([]byte(payload))
	require.NoError(t, err)
	require.Len(t, plan.Files, 1)
	assert.Equal(t, "main.py", plan.Files[0].FileName)
}

func TestExtractPayloadBareFence(t *testing.T) {
	response := "```\n{\"files\": [\"a.py\"]}\n```"
	assert.Equal(t, `{"files": ["a.py"]}`, ExtractPayload(response))
}

func TestExtractPayloadProseWrapped(t *testing.T) {
	response := `Sure! {"files": [{"file_name": "x.py"}], "edges": []} Hope that helps.`
	payload := ExtractPayload(response)
	plan, err := canvas.ParseRawPlan([]byte(payload))
	require.NoError(t, err)
	require.Len(t, plan.Files, 1)
}

func TestExtractPayloadPlainJSON(t *testing.T) {
	response := `{"files": [{"file_name": "x.py"}]}`
	assert.Equal(t, response, ExtractPayload(response))
}

func TestBuildPrompt(t *testing.T) {
	spec := canvas.ProjectSpec{
		Title:     "Todo App",
		TechStack: []string{"Python", "FastAPI"},
		Features:  []string{"User Login"},
	}
	prompt := BuildPrompt(spec)
	assert.Contains(t, prompt, "Todo App")
	assert.Contains(t, prompt, "Python, FastAPI")
	assert.Contains(t, prompt, "- User Login")
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("", "", nil)
	require.Error(t, err)
}
