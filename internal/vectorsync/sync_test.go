package vectorsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencanvas/canvasd/internal/canvas"
)

func TestObjectIDDeterministic(t *testing.T) {
	a := ObjectID(ClassNode, "main")
	b := ObjectID(ClassNode, "main")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ObjectID(ClassNode, "other"))
	assert.NotEqual(t, a, ObjectID(ClassFile, "main"))
}

func TestNodeProperties(t *testing.T) {
	file := canvas.NodeRecord{
		ID: "main", Type: canvas.NodeTypeFile,
		FileName: "main.py", Status: canvas.StatusIdle, Description: "entry",
	}
	props := NodeProperties(file)
	assert.Equal(t, "main.py", props["fileName"])
	assert.Equal(t, "file", props["nodeType"])
	assert.NotContains(t, props, "name")

	folder := canvas.NodeRecord{ID: "docs", Type: canvas.NodeTypeFolder, Name: "Docs"}
	props = NodeProperties(folder)
	assert.Equal(t, "Docs", props["name"])
	assert.NotContains(t, props, "fileName")
}

func TestEdgeAndFileProperties(t *testing.T) {
	edge := canvas.Edge{From: "a", To: "b", Type: "imports"}
	props := EdgeProperties(edge)
	assert.Equal(t, "a", props["fromId"])
	assert.Equal(t, "imports", props["edgeType"])

	view := canvas.FileView{ID: "a", FileName: "a.py", FileType: "python", Content: "pass"}
	props = FileProperties(view)
	assert.Equal(t, "pass", props["content"])
	assert.Equal(t, "python", props["fileType"])
}
