package canvas

import "strings"

const (
	NodeTypeFile   = "file"
	NodeTypeFolder = "folder"
)

// File node lifecycle statuses surfaced to the editor.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusError   = "error"
)

// NodeRecord is one entry of the durable metadata document. File and folder
// nodes share the id namespace and the positional fields; the remaining
// fields apply per type.
type NodeRecord struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`

	// File fields. FileName is the workspace-relative path.
	FileName string `json:"fileName,omitempty"`
	Status   string `json:"status,omitempty"`

	// Folder fields.
	Name           string   `json:"name,omitempty"`
	Width          float64  `json:"width,omitempty"`
	Height         float64  `json:"height,omitempty"`
	IsExpanded     bool     `json:"isExpanded,omitempty"`
	ContainedFiles []string `json:"containedFiles,omitempty"`
	ParentFolder   string   `json:"parentFolder,omitempty"`
}

func (n *NodeRecord) clone() *NodeRecord {
	if n == nil {
		return nil
	}
	dup := *n
	if n.ContainedFiles != nil {
		dup.ContainedFiles = append([]string(nil), n.ContainedFiles...)
	}
	return &dup
}

// Edge is a directed relationship between two node ids.
type Edge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// key identifies an edge for de-duplication. Description is deliberately
// excluded.
func (e Edge) key() string {
	return strings.ToLower(e.From) + "\x00" + strings.ToLower(e.To) + "\x00" + strings.ToLower(e.Type)
}

// DefaultEdgeType is applied to edges whose producer supplied none.
const DefaultEdgeType = "depends_on"

// persistedState is the unit a StateBackend loads and saves. Nodes mirrors
// the metadata document keyed by id; Edges mirrors the edge document.
type persistedState struct {
	Nodes map[string]*NodeRecord `json:"nodes"`
	Edges []Edge                 `json:"edges"`
}

func newPersistedState() persistedState {
	return persistedState{Nodes: map[string]*NodeRecord{}, Edges: []Edge{}}
}

// ProjectSpec describes the project a plan is produced for. TechStack drives
// default-extension inference; Features drive the fallback scaffold.
type ProjectSpec struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	TechStack   []string `json:"tech_stack,omitempty"`
	Features    []string `json:"features,omitempty"`
}
