package canvas

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Canvas grid layout for newly placed file nodes.
const (
	gridColumns  = 4
	gridXSpacing = 260
	gridYSpacing = 200
	gridMarginX  = 160
	gridMarginY  = 140
)

// Store owns the canvas state: the node table, the edge list, and the
// workspace index, guarded by one mutex so every operation is a transaction
// over all three. The durable document is committed through a StateBackend;
// the workspace directory is kept in agreement by fileSystemSync.
type Store struct {
	mu      sync.Mutex
	backend StateBackend
	fsync   *fileSystemSync
	log     *zap.Logger
	events  *eventFeed

	nodes     map[string]*NodeRecord
	edges     []Edge
	pathOwner map[string]string
	registry  *IdentifierRegistry
	orphaned  []string
}

// NewStore loads the snapshot from the backend and reconciles the workspace
// directory against it. A missing or invalid snapshot starts the canvas
// empty; it is never an error to the caller.
func NewStore(workspaceRoot string, backend StateBackend, log *zap.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil state backend", ErrInvalidInput)
	}
	if log == nil {
		log = zap.NewNop()
	}
	fsync, err := newFileSystemSync(workspaceRoot, log.Named("fsync"))
	if err != nil {
		return nil, err
	}
	s := &Store{
		backend:   backend,
		fsync:     fsync,
		log:       log,
		events:    newEventFeed(),
		nodes:     map[string]*NodeRecord{},
		pathOwner: map[string]string{},
		edges:     []Edge{},
	}

	state, err := backend.Load()
	if err != nil {
		log.Warn("state backend load failed, starting empty", zap.Error(err))
		state = newPersistedState()
	}
	s.adoptStateLocked(state)
	if err := s.reconcileLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// adoptStateLocked installs a loaded snapshot, restoring the invariants an
// older or hand-edited document may violate: bidirectional folder links,
// dangling edges, duplicate paths.
func (s *Store) adoptStateLocked(state persistedState) {
	s.nodes = map[string]*NodeRecord{}
	s.pathOwner = map[string]string{}
	ids := make([]string, 0, len(state.Nodes))
	for id, node := range state.Nodes {
		if node == nil {
			continue
		}
		node.ID = id
		if node.Type != NodeTypeFile && node.Type != NodeTypeFolder {
			s.log.Warn("dropping node with unknown type", zap.String("id", id), zap.String("type", node.Type))
			continue
		}
		if node.Type == NodeTypeFile {
			canonical, err := ResolvePath(node.FileName, "")
			if err != nil {
				s.log.Warn("dropping file node with unsafe path", zap.String("id", id), zap.Error(err))
				continue
			}
			if owner, dup := s.pathOwner[canonical]; dup {
				s.log.Warn("dropping file node with duplicate path",
					zap.String("id", id), zap.String("path", canonical), zap.String("owner", owner))
				continue
			}
			node.FileName = canonical
			s.pathOwner[canonical] = id
			if node.Status == "" {
				node.Status = StatusIdle
			}
		}
		s.nodes[id] = node
		ids = append(ids, id)
	}
	s.rebuildFolderLinksLocked()
	s.edges = s.edges[:0]
	seen := map[string]bool{}
	for _, e := range state.Edges {
		if s.nodes[e.From] == nil || s.nodes[e.To] == nil || e.From == e.To {
			continue
		}
		if e.Type == "" {
			e.Type = DefaultEdgeType
		}
		if seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		s.edges = append(s.edges, e)
	}
	s.registry = NewIdentifierRegistry(ids...)
}

// rebuildFolderLinksLocked recomputes containedFiles from parentFolder so
// the two stay bidirectionally consistent, clearing parents that point at
// missing or non-folder nodes.
func (s *Store) rebuildFolderLinksLocked() {
	for _, node := range s.nodes {
		if node.Type == NodeTypeFolder {
			node.ContainedFiles = node.ContainedFiles[:0]
		}
	}
	fileIDs := s.sortedIDsLocked(NodeTypeFile)
	for _, id := range fileIDs {
		file := s.nodes[id]
		if file.ParentFolder == "" {
			continue
		}
		folder := s.nodes[file.ParentFolder]
		if folder == nil || folder.Type != NodeTypeFolder {
			file.ParentFolder = ""
			continue
		}
		folder.ContainedFiles = append(folder.ContainedFiles, id)
	}
}

func (s *Store) sortedIDsLocked(nodeType string) []string {
	ids := make([]string, 0, len(s.nodes))
	for id, node := range s.nodes {
		if nodeType == "" || node.Type == nodeType {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// reconcileLocked makes the workspace directory satisfy the node table:
// folder directories exist, every file node has a physical file. Failures
// abort so the document is never committed ahead of the filesystem.
func (s *Store) reconcileLocked() error {
	for _, id := range s.sortedIDsLocked(NodeTypeFolder) {
		if err := s.fsync.ensureDir(s.folderDirLocked(s.nodes[id])); err != nil {
			return err
		}
	}
	for _, id := range s.sortedIDsLocked(NodeTypeFile) {
		if err := s.fsync.materialize(s.nodes[id].FileName); err != nil {
			return err
		}
	}
	return nil
}

// saveLocked reconciles then commits the document.
func (s *Store) saveLocked() error {
	if err := s.reconcileLocked(); err != nil {
		return err
	}
	state := persistedState{Nodes: s.nodes, Edges: s.edges}
	if err := s.backend.Save(state); err != nil {
		return fmt.Errorf("save canvas state: %w", err)
	}
	return nil
}

// folderDirLocked is the workspace-relative directory a folder node owns.
func (s *Store) folderDirLocked(folder *NodeRecord) string {
	return Slugify(folder.Name)
}

func (s *Store) nextPositionLocked() (float64, float64) {
	n := 0
	for _, node := range s.nodes {
		if node.Type == NodeTypeFile {
			n++
		}
	}
	x := float64(gridMarginX + (n%gridColumns)*gridXSpacing)
	y := float64(gridMarginY + (n/gridColumns)*gridYSpacing)
	return x, y
}

func (s *Store) fileLocked(id string) (*NodeRecord, error) {
	node := s.nodes[id]
	if node == nil || node.Type != NodeTypeFile {
		return nil, fmt.Errorf("%w: file %q", ErrNotFound, id)
	}
	return node, nil
}

func (s *Store) folderLocked(id string) (*NodeRecord, error) {
	node := s.nodes[id]
	if node == nil || node.Type != NodeTypeFolder {
		return nil, fmt.Errorf("%w: folder %q", ErrNotFound, id)
	}
	return node, nil
}

// FileView is the read shape for file nodes, joined with file contents.
type FileView struct {
	ID           string  `json:"id"`
	FileName     string  `json:"fileName"`
	Description  string  `json:"description,omitempty"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Status       string  `json:"status"`
	FileType     string  `json:"fileType"`
	ParentFolder string  `json:"parentFolder,omitempty"`
	Content      string  `json:"content"`
}

func (s *Store) fileViewLocked(node *NodeRecord) (FileView, error) {
	content, err := s.fsync.readContent(node.FileName)
	if err != nil {
		return FileView{}, err
	}
	return FileView{
		ID:           node.ID,
		FileName:     node.FileName,
		Description:  node.Description,
		X:            node.X,
		Y:            node.Y,
		Status:       node.Status,
		FileType:     FileType(node.FileName),
		ParentFolder: node.ParentFolder,
		Content:      content,
	}, nil
}

// ApplyPlan replaces the canvas with a sanitized plan: nodes laid out on the
// grid, placeholders materialized, edges installed. Files from the previous
// canvas stay on disk and surface as orphans rather than being destroyed.
func (s *Store) ApplyPlan(plan SanitizedPlan) ([]NodeRecord, error) {
	if len(plan.Files) == 0 {
		return nil, fmt.Errorf("%w: sanitized plan has no files", ErrEmptyPlan)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = map[string]*NodeRecord{}
	s.pathOwner = map[string]string{}
	s.edges = s.edges[:0]
	ids := make([]string, 0, len(plan.Files))

	created := make([]NodeRecord, 0, len(plan.Files))
	for i, f := range plan.Files {
		node := &NodeRecord{
			ID:          f.ID,
			Type:        NodeTypeFile,
			Description: f.Description,
			FileName:    f.Path,
			Status:      StatusIdle,
			X:           float64(gridMarginX + (i%gridColumns)*gridXSpacing),
			Y:           float64(gridMarginY + (i/gridColumns)*gridYSpacing),
		}
		s.nodes[f.ID] = node
		s.pathOwner[f.Path] = f.ID
		ids = append(ids, f.ID)
		created = append(created, *node.clone())
	}
	seen := map[string]bool{}
	for _, e := range plan.Edges {
		if s.nodes[e.From] == nil || s.nodes[e.To] == nil || seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		s.edges = append(s.edges, e)
	}
	s.registry = NewIdentifierRegistry(ids...)

	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	s.events.publish(EventPlanApplied, "", fmt.Sprintf("%d files, %d edges", len(created), len(s.edges)))
	return created, nil
}

// CreateFile adds one file node at the next grid slot. The raw path must
// already carry its extension; a path owned by another node is rejected.
func (s *Store) CreateFile(rawPath, description string) (NodeRecord, error) {
	canonical, err := ResolvePath(rawPath, "")
	if err != nil {
		return NodeRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, dup := s.pathOwner[canonical]; dup {
		return NodeRecord{}, &PathConflictError{Path: canonical, ExistingID: owner}
	}
	base := path.Base(canonical)
	id := s.registry.Reserve(strings.TrimSuffix(base, path.Ext(base)))
	x, y := s.nextPositionLocked()
	node := &NodeRecord{
		ID:          id,
		Type:        NodeTypeFile,
		Description: strings.TrimSpace(description),
		FileName:    canonical,
		Status:      StatusIdle,
		X:           x,
		Y:           y,
	}
	s.nodes[id] = node
	s.pathOwner[canonical] = id
	if err := s.saveLocked(); err != nil {
		delete(s.nodes, id)
		delete(s.pathOwner, canonical)
		return NodeRecord{}, err
	}
	s.events.publish(EventNodeCreated, id, canonical)
	return *node.clone(), nil
}

// GetFile returns a file node joined with its current contents.
func (s *Store) GetFile(id string) (FileView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, err := s.fileLocked(id)
	if err != nil {
		return FileView{}, err
	}
	return s.fileViewLocked(node)
}

// ListFiles returns every file node with contents, ordered by id.
func (s *Store) ListFiles() ([]FileView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FileView, 0)
	for _, id := range s.sortedIDsLocked(NodeTypeFile) {
		view, err := s.fileViewLocked(s.nodes[id])
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// ListFolders returns every folder node, ordered by id.
func (s *Store) ListFolders() []NodeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NodeRecord, 0)
	for _, id := range s.sortedIDsLocked(NodeTypeFolder) {
		out = append(out, *s.nodes[id].clone())
	}
	return out
}

// UpdateFileContent writes the file body through to disk. Content lives on
// the filesystem only; the document commit records nothing new but keeps the
// save ordering uniform.
func (s *Store) UpdateFileContent(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, err := s.fileLocked(id)
	if err != nil {
		return err
	}
	if err := s.fsync.writeContent(node.FileName, content); err != nil {
		return err
	}
	s.events.publish(EventNodeUpdated, id, "content")
	return nil
}

// UpdateFilePosition moves a node on the canvas without touching any other
// field.
func (s *Store) UpdateFilePosition(id string, x, y float64) error {
	return s.updateFileLocked(id, "position", func(node *NodeRecord) {
		node.X, node.Y = x, y
	})
}

func (s *Store) UpdateFileDescription(id, description string) error {
	return s.updateFileLocked(id, "description", func(node *NodeRecord) {
		node.Description = strings.TrimSpace(description)
	})
}

func (s *Store) UpdateFileStatus(id, status string) error {
	switch status {
	case StatusIdle, StatusRunning, StatusError:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	return s.updateFileLocked(id, "status", func(node *NodeRecord) {
		node.Status = status
	})
}

func (s *Store) updateFileLocked(id, what string, mutate func(*NodeRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, err := s.fileLocked(id)
	if err != nil {
		return err
	}
	mutate(node)
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventNodeUpdated, id, what)
	return nil
}

// MoveFileToFolder reparents a file node. An empty folderID moves it to the
// workspace root. The physical file relocates under the folder's directory,
// keeping its base name.
func (s *Store) MoveFileToFolder(id, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.fileLocked(id)
	if err != nil {
		return err
	}
	newDir := ""
	if folderID != "" {
		folder, err := s.folderLocked(folderID)
		if err != nil {
			return err
		}
		newDir = s.folderDirLocked(folder)
	}
	base := path.Base(file.FileName)
	newRel := base
	if newDir != "" {
		newRel = newDir + "/" + base
	}
	if owner, dup := s.pathOwner[newRel]; dup && owner != id {
		return &PathConflictError{Path: newRel, ExistingID: owner}
	}
	if err := s.fsync.move(file.FileName, newRel); err != nil {
		return err
	}
	delete(s.pathOwner, file.FileName)
	file.FileName = newRel
	file.ParentFolder = folderID
	s.pathOwner[newRel] = id
	s.rebuildFolderLinksLocked()
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventNodeUpdated, id, "folder")
	return nil
}

// DeleteFile removes a file node, its physical file, and every edge
// touching it, in one transaction. The physical delete is best effort.
func (s *Store) DeleteFile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := s.fileLocked(id)
	if err != nil {
		return err
	}
	s.fsync.remove(file.FileName)
	delete(s.pathOwner, file.FileName)
	delete(s.nodes, id)
	s.removeEdgesTouchingLocked(map[string]bool{id: true})
	s.rebuildFolderLinksLocked()
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventNodeDeleted, id, file.FileName)
	return nil
}

// CreateFolder adds a folder node and its directory.
func (s *Store) CreateFolder(name string, x, y float64) (NodeRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return NodeRecord{}, fmt.Errorf("%w: folder name is empty", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.registry.Reserve(name)
	node := &NodeRecord{
		ID:         id,
		Type:       NodeTypeFolder,
		Name:       name,
		X:          x,
		Y:          y,
		Width:      300,
		Height:     200,
		IsExpanded: true,
	}
	s.nodes[id] = node
	if err := s.saveLocked(); err != nil {
		delete(s.nodes, id)
		return NodeRecord{}, err
	}
	s.events.publish(EventNodeCreated, id, name)
	return *node.clone(), nil
}

// FolderUpdate carries a partial folder mutation; nil fields are left as
// they are.
type FolderUpdate struct {
	Name       *string
	X, Y       *float64
	Width      *float64
	Height     *float64
	IsExpanded *bool
}

// UpdateFolder applies a partial update. A rename relocates the folder's
// directory and rewrites the paths of contained files.
func (s *Store) UpdateFolder(id string, update FolderUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, err := s.folderLocked(id)
	if err != nil {
		return err
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) != "" && *update.Name != folder.Name {
		if err := s.renameFolderLocked(folder, strings.TrimSpace(*update.Name)); err != nil {
			return err
		}
	}
	if update.X != nil {
		folder.X = *update.X
	}
	if update.Y != nil {
		folder.Y = *update.Y
	}
	if update.Width != nil {
		folder.Width = *update.Width
	}
	if update.Height != nil {
		folder.Height = *update.Height
	}
	if update.IsExpanded != nil {
		folder.IsExpanded = *update.IsExpanded
	}
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventNodeUpdated, id, "folder")
	return nil
}

func (s *Store) renameFolderLocked(folder *NodeRecord, newName string) error {
	oldDir := s.folderDirLocked(folder)
	folder.Name = newName
	newDir := s.folderDirLocked(folder)
	if oldDir == newDir {
		return nil
	}
	for _, fileID := range folder.ContainedFiles {
		file := s.nodes[fileID]
		if file == nil {
			continue
		}
		newRel := newDir + "/" + path.Base(file.FileName)
		if err := s.fsync.move(file.FileName, newRel); err != nil {
			return err
		}
		delete(s.pathOwner, file.FileName)
		file.FileName = newRel
		s.pathOwner[newRel] = fileID
	}
	s.fsync.removeDirIfEmpty(oldDir)
	return s.fsync.ensureDir(newDir)
}

// DeleteFolder removes a folder node, cascading to its contained files,
// their physical files, and every edge referencing a removed id.
func (s *Store) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, err := s.folderLocked(id)
	if err != nil {
		return err
	}
	removed := map[string]bool{id: true}
	for _, fileID := range folder.ContainedFiles {
		file := s.nodes[fileID]
		if file == nil {
			continue
		}
		s.fsync.remove(file.FileName)
		delete(s.pathOwner, file.FileName)
		delete(s.nodes, fileID)
		removed[fileID] = true
	}
	delete(s.nodes, id)
	s.removeEdgesTouchingLocked(removed)
	s.fsync.removeDirIfEmpty(s.folderDirLocked(folder))
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventNodeDeleted, id, folder.Name)
	return nil
}

func (s *Store) removeEdgesTouchingLocked(ids map[string]bool) {
	kept := s.edges[:0]
	for _, e := range s.edges {
		if ids[e.From] || ids[e.To] {
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
}

// Metadata returns a deep copy of the node table.
func (s *Store) Metadata() map[string]NodeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]NodeRecord, len(s.nodes))
	for id, node := range s.nodes {
		out[id] = *node.clone()
	}
	return out
}

// UpsertNode merges one record into the node table: zero-valued fields of
// the incoming record leave the stored field untouched, so a position-only
// payload cannot clobber a description.
func (s *Store) UpsertNode(record NodeRecord) (NodeRecord, error) {
	if strings.TrimSpace(record.ID) == "" {
		return NodeRecord{}, fmt.Errorf("%w: node id is empty", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.nodes[record.ID]
	if existing == nil {
		switch record.Type {
		case NodeTypeFile:
			canonical, err := ResolvePath(record.FileName, "")
			if err != nil {
				return NodeRecord{}, err
			}
			if owner, dup := s.pathOwner[canonical]; dup {
				return NodeRecord{}, &PathConflictError{Path: canonical, ExistingID: owner}
			}
			record.FileName = canonical
			if record.Status == "" {
				record.Status = StatusIdle
			}
			s.pathOwner[canonical] = record.ID
		case NodeTypeFolder:
		default:
			return NodeRecord{}, fmt.Errorf("%w: node type %q", ErrInvalidInput, record.Type)
		}
		node := record.clone()
		s.nodes[record.ID] = node
		if !s.registry.Known(record.ID) {
			s.registry.Reserve(record.ID)
		}
		s.rebuildFolderLinksLocked()
		if err := s.saveLocked(); err != nil {
			return NodeRecord{}, err
		}
		s.events.publish(EventNodeCreated, record.ID, "")
		return *node.clone(), nil
	}

	if record.Type != "" && record.Type != existing.Type {
		return NodeRecord{}, fmt.Errorf("%w: node %q cannot change type", ErrInvalidInput, record.ID)
	}
	if record.Description != "" {
		existing.Description = record.Description
	}
	if record.X != 0 {
		existing.X = record.X
	}
	if record.Y != 0 {
		existing.Y = record.Y
	}
	if existing.Type == NodeTypeFile {
		if record.FileName != "" && record.FileName != existing.FileName {
			canonical, err := ResolvePath(record.FileName, "")
			if err != nil {
				return NodeRecord{}, err
			}
			if owner, dup := s.pathOwner[canonical]; dup && owner != existing.ID {
				return NodeRecord{}, &PathConflictError{Path: canonical, ExistingID: owner}
			}
			if err := s.fsync.move(existing.FileName, canonical); err != nil {
				return NodeRecord{}, err
			}
			delete(s.pathOwner, existing.FileName)
			existing.FileName = canonical
			s.pathOwner[canonical] = existing.ID
		}
		if record.Status != "" {
			existing.Status = record.Status
		}
	} else {
		if record.Name != "" {
			if err := s.renameFolderLocked(existing, record.Name); err != nil {
				return NodeRecord{}, err
			}
		}
		if record.Width != 0 {
			existing.Width = record.Width
		}
		if record.Height != 0 {
			existing.Height = record.Height
		}
	}
	if err := s.saveLocked(); err != nil {
		return NodeRecord{}, err
	}
	s.events.publish(EventNodeUpdated, record.ID, "")
	return *existing.clone(), nil
}

// SetMetadata replaces the whole node table, re-running the same invariant
// restoration as a load. Edges whose endpoints disappear are dropped in the
// same transaction.
func (s *Store) SetMetadata(doc map[string]NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := persistedState{Nodes: map[string]*NodeRecord{}, Edges: s.edges}
	for id, record := range doc {
		record.ID = id
		state.Nodes[id] = record.clone()
	}
	s.adoptStateLocked(state)
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventPlanApplied, "", fmt.Sprintf("metadata replaced, %d nodes", len(s.nodes)))
	return nil
}

// Edges returns a copy of the edge list.
func (s *Store) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edge(nil), s.edges...)
}

// AddEdge installs a directed edge. Endpoints must be live node ids; a
// missing type defaults; an exact (from, to, type) duplicate is rejected.
func (s *Store) AddEdge(edge Edge) (Edge, error) {
	edge.From = strings.TrimSpace(edge.From)
	edge.To = strings.TrimSpace(edge.To)
	if edge.From == "" || edge.To == "" {
		return Edge{}, fmt.Errorf("%w: edge endpoints are required", ErrInvalidInput)
	}
	if edge.From == edge.To {
		return Edge{}, fmt.Errorf("%w: self loop %q", ErrInvalidInput, edge.From)
	}
	if edge.Type == "" {
		edge.Type = DefaultEdgeType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nodes[edge.From] == nil {
		return Edge{}, fmt.Errorf("%w: node %q", ErrNotFound, edge.From)
	}
	if s.nodes[edge.To] == nil {
		return Edge{}, fmt.Errorf("%w: node %q", ErrNotFound, edge.To)
	}
	for _, existing := range s.edges {
		if existing.key() == edge.key() {
			return Edge{}, fmt.Errorf("%w: duplicate edge %s -> %s (%s)", ErrInvalidInput, edge.From, edge.To, edge.Type)
		}
	}
	s.edges = append(s.edges, edge)
	if err := s.saveLocked(); err != nil {
		s.edges = s.edges[:len(s.edges)-1]
		return Edge{}, err
	}
	s.events.publish(EventEdgeAdded, edge.From, edge.To)
	return edge, nil
}

// RemoveEdge deletes the edge matching (from, to, type). An empty type
// matches any type between the endpoints.
func (s *Store) RemoveEdge(from, to, edgeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.edges[:0]
	removed := 0
	for _, e := range s.edges {
		match := strings.EqualFold(e.From, from) && strings.EqualFold(e.To, to) &&
			(edgeType == "" || strings.EqualFold(e.Type, edgeType))
		if match {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		s.edges = kept
		return fmt.Errorf("%w: edge %s -> %s", ErrNotFound, from, to)
	}
	s.edges = kept
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.events.publish(EventEdgeRemoved, from, to)
	return nil
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Files   int      `json:"files"`
	Folders int      `json:"folders"`
	Orphans []string `json:"orphans"`
}

// Reconcile re-materializes the workspace from the document and reports
// orphaned files. Orphans are logged and remembered, never adopted.
func (s *Store) Reconcile() (ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reconcileLocked(); err != nil {
		return ReconcileReport{}, err
	}
	tracked := make(map[string]bool, len(s.pathOwner))
	for p := range s.pathOwner {
		tracked[p] = true
	}
	orphans, err := s.fsync.orphans(tracked)
	if err != nil {
		return ReconcileReport{}, err
	}
	s.orphaned = orphans
	for _, o := range orphans {
		s.log.Info("orphaned workspace file", zap.String("path", o))
	}
	report := ReconcileReport{Orphans: orphans}
	for _, node := range s.nodes {
		if node.Type == NodeTypeFile {
			report.Files++
		} else {
			report.Folders++
		}
	}
	return report, nil
}

// Orphans returns the orphan list from the most recent reconciliation.
func (s *Store) Orphans() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.orphaned...)
}

// NoteOrphan records an externally observed orphan (the watcher) and
// publishes an event.
func (s *Store) NoteOrphan(rel string) {
	s.mu.Lock()
	for _, existing := range s.orphaned {
		if existing == rel {
			s.mu.Unlock()
			return
		}
	}
	s.orphaned = append(s.orphaned, rel)
	sort.Strings(s.orphaned)
	s.mu.Unlock()
	s.events.publish(EventOrphan, "", rel)
}

// TracksPath reports whether a workspace-relative path belongs to a file
// node.
func (s *Store) TracksPath(rel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pathOwner[rel]
	return ok
}

// WorkspaceRoot is the absolute workspace directory.
func (s *Store) WorkspaceRoot() string {
	return s.fsync.root
}

// RecentEvents returns the bounded tail of the event feed.
func (s *Store) RecentEvents() []Event {
	return s.events.recentEvents()
}

// Subscribe attaches a live event listener; the cancel func detaches it.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// PublishOutput appends one line to the bounded output log.
func (s *Store) PublishOutput(nodeID, line string) {
	s.events.publish(EventOutput, nodeID, line)
}
