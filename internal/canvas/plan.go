package canvas

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
)

// RawFileEntry is one file node as an untrusted producer shaped it. All
// fields are optional; extraction prefers FileName, then Path, Name, Label.
type RawFileEntry struct {
	ID          string
	FileName    string
	Path        string
	Name        string
	Label       string
	Description string
}

func (e *RawFileEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.FileName = s
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.ID = rawString(m, "id", "node_id")
	e.FileName = rawString(m, "file_name", "fileName", "filename", "file")
	e.Path = rawString(m, "path", "file_path", "filePath")
	e.Name = rawString(m, "name")
	e.Label = rawString(m, "label", "title")
	e.Description = rawString(m, "description", "desc", "purpose")
	return nil
}

// pathCandidate returns the first usable path-like field.
func (e RawFileEntry) pathCandidate() string {
	for _, v := range []string{e.FileName, e.Path, e.Name, e.Label} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RawEdgeEntry is one relationship as an untrusted producer shaped it.
type RawEdgeEntry struct {
	From        string
	Source      string
	To          string
	Target      string
	Type        string
	Description string
}

func (e *RawEdgeEntry) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.From = rawString(m, "from", "from_id", "fromId")
	e.Source = rawString(m, "source", "src", "start")
	e.To = rawString(m, "to", "to_id", "toId")
	e.Target = rawString(m, "target", "dst", "end")
	e.Type = rawString(m, "type", "kind", "relationship")
	e.Description = rawString(m, "description", "label")
	return nil
}

func rawString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}

// RawPlan is the tolerant decoding of a producer's plan payload. The top
// level may be an object carrying file and edge arrays under several key
// spellings, or a bare array of file entries.
type RawPlan struct {
	Files []RawFileEntry
	Edges []RawEdgeEntry
}

func (p *RawPlan) UnmarshalJSON(data []byte) error {
	var files []RawFileEntry
	if err := json.Unmarshal(data, &files); err == nil {
		p.Files = files
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for _, k := range []string{"files", "nodes", "file_nodes", "plan"} {
		if raw, ok := m[k]; ok {
			if err := json.Unmarshal(raw, &p.Files); err == nil && len(p.Files) > 0 {
				break
			}
		}
	}
	for _, k := range []string{"edges", "connections", "links", "relationships"} {
		if raw, ok := m[k]; ok {
			if err := json.Unmarshal(raw, &p.Edges); err == nil && len(p.Edges) > 0 {
				break
			}
		}
	}
	return nil
}

// ParseRawPlan decodes a plan payload. ErrEmptyPlan is returned when the
// payload parses but carries nothing extractable; callers then sanitize the
// zero plan, which yields the fallback scaffold.
func ParseRawPlan(data []byte) (RawPlan, error) {
	var plan RawPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return RawPlan{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(plan.Files) == 0 && len(plan.Edges) == 0 {
		return plan, ErrEmptyPlan
	}
	return plan, nil
}

// PlannedFile is one sanitized file node ready to apply.
type PlannedFile struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// SanitizedPlan is the canonical graph produced from a RawPlan. Aliases maps
// every identifying string a producer used (lower-cased) to the final node
// id so edges expressed in any vocabulary resolve.
type SanitizedPlan struct {
	Files   []PlannedFile
	Edges   []Edge
	Aliases map[string]string
}

// SanitizePlan turns an untrusted plan into a canonical one. It never fails:
// unusable file entries are dropped, unresolvable edges are dropped, and a
// plan with no surviving files is replaced by the deterministic fallback
// scaffold derived from the project spec.
func SanitizePlan(raw RawPlan, spec ProjectSpec, log *zap.Logger) SanitizedPlan {
	if log == nil {
		log = zap.NewNop()
	}
	ext := DefaultExtension(spec.TechStack)
	registry := NewIdentifierRegistry()
	out := SanitizedPlan{Aliases: map[string]string{}}
	ownerByPath := map[string]string{}

	for _, entry := range raw.Files {
		candidate := entry.pathCandidate()
		if candidate == "" {
			log.Debug("dropping file entry without a path")
			continue
		}
		canonical, err := ResolvePath(candidate, ext)
		if err != nil {
			log.Warn("dropping file entry with unsafe path",
				zap.String("path", candidate), zap.Error(err))
			continue
		}
		if owner, dup := ownerByPath[canonical]; dup {
			// Later duplicates are dropped; their identifying strings
			// alias to the surviving file so edges still resolve.
			log.Warn("dropping duplicate path, aliasing to survivor",
				zap.String("path", canonical), zap.String("owner", owner))
			aliasEntry(out.Aliases, entry, candidate, canonical, owner)
			continue
		}
		idCandidate := entry.ID
		if strings.TrimSpace(idCandidate) == "" {
			idCandidate = strings.TrimSuffix(path.Base(canonical), path.Ext(canonical))
		}
		id := registry.Reserve(idCandidate)
		ownerByPath[canonical] = id
		aliasEntry(out.Aliases, entry, candidate, canonical, id)
		out.Aliases[strings.ToLower(id)] = id
		out.Files = append(out.Files, PlannedFile{
			ID:          id,
			Path:        canonical,
			Description: strings.TrimSpace(entry.Description),
		})
	}

	if len(out.Files) == 0 {
		log.Info("no usable files in plan, using fallback scaffold",
			zap.String("project", spec.Title))
		return fallbackPlan(spec, ext)
	}

	seen := map[string]bool{}
	for _, entry := range raw.Edges {
		from := resolveAlias(out.Aliases, entry.From, entry.Source)
		to := resolveAlias(out.Aliases, entry.To, entry.Target)
		if from == "" || to == "" {
			log.Debug("dropping edge with unresolvable endpoint",
				zap.String("from", entry.From+entry.Source),
				zap.String("to", entry.To+entry.Target))
			continue
		}
		if from == to {
			continue
		}
		edge := Edge{From: from, To: to, Type: strings.TrimSpace(entry.Type), Description: strings.TrimSpace(entry.Description)}
		if edge.Type == "" {
			edge.Type = DefaultEdgeType
		}
		if seen[edge.key()] {
			continue
		}
		seen[edge.key()] = true
		out.Edges = append(out.Edges, edge)
	}

	if len(out.Edges) == 0 && len(out.Files) > 1 {
		out.Edges = chainEdges(out.Files)
	}
	return out
}

// aliasEntry records every string a producer might later use to reference
// this file. Keys are lower-cased; earlier bindings win so the first owner
// of a contested string keeps it.
func aliasEntry(aliases map[string]string, entry RawFileEntry, rawPath, canonical, id string) {
	base := path.Base(canonical)
	stem := strings.TrimSuffix(base, path.Ext(base))
	for _, key := range []string{entry.ID, entry.FileName, entry.Path, entry.Name, entry.Label, rawPath, canonical, base, stem} {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, taken := aliases[key]; !taken {
			aliases[key] = id
		}
	}
}

func resolveAlias(aliases map[string]string, candidates ...string) string {
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if id, ok := aliases[c]; ok {
			return id
		}
	}
	return ""
}

// chainEdges links the sanitized files sequentially so a plan without
// relationships still renders as a connected graph.
func chainEdges(files []PlannedFile) []Edge {
	edges := make([]Edge, 0, len(files)-1)
	for i := 0; i+1 < len(files); i++ {
		edges = append(edges, Edge{From: files[i].ID, To: files[i+1].ID, Type: DefaultEdgeType})
	}
	return edges
}

// fallbackPlan builds the deterministic scaffold: one file per declared
// feature, or a single entrypoint named after the project title.
func fallbackPlan(spec ProjectSpec, ext string) SanitizedPlan {
	registry := NewIdentifierRegistry()
	out := SanitizedPlan{Aliases: map[string]string{}}
	frontend := map[string]bool{".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".html": true, ".css": true}
	dir := "backend"
	if frontend[ext] {
		dir = "frontend"
	}
	for _, feature := range spec.Features {
		feature = strings.TrimSpace(feature)
		if feature == "" {
			continue
		}
		slug := Slugify(feature)
		id := registry.Reserve(slug)
		canonical := dir + "/" + id + ext
		out.Aliases[strings.ToLower(id)] = id
		out.Aliases[strings.ToLower(canonical)] = id
		out.Files = append(out.Files, PlannedFile{
			ID:          id,
			Path:        canonical,
			Description: "Implements " + feature,
		})
	}
	if len(out.Files) == 0 {
		title := spec.Title
		if strings.TrimSpace(title) == "" {
			title = "main"
		}
		id := registry.Reserve(title)
		canonical := "backend/" + id + ext
		out.Aliases[strings.ToLower(id)] = id
		out.Aliases[strings.ToLower(canonical)] = id
		out.Files = append(out.Files, PlannedFile{
			ID:          id,
			Path:        canonical,
			Description: "Project entrypoint",
		})
	}
	if len(out.Files) > 1 {
		out.Edges = chainEdges(out.Files)
	}
	return out
}
