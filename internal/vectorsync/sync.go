package vectorsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.uber.org/zap"

	"github.com/opencanvas/canvasd/internal/canvas"
)

// Weaviate classes the canvas is mirrored into.
const (
	ClassNode = "CanvasNode"
	ClassEdge = "CanvasEdge"
	ClassFile = "CanvasFile"
)

// Syncer pushes canvas nodes, edges, and file contents into Weaviate for
// semantic search. Object ids are derived deterministically from the canvas
// identity, so re-syncing upserts rather than duplicating.
type Syncer struct {
	client *weaviate.Client
	store  *canvas.Store
	log    *zap.Logger
}

func New(url string, store *canvas.Store, log *zap.Logger) (*Syncer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := weaviate.Config{Host: url, Scheme: "http"}
	switch {
	case strings.HasPrefix(url, "https://"):
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		cfg.Host = strings.TrimPrefix(url, "http://")
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &Syncer{client: client, store: store, log: log}, nil
}

// Ready reports whether Weaviate answers its readiness probe.
func (s *Syncer) Ready(ctx context.Context) bool {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ready
}

// SyncAll mirrors the whole canvas. Best effort: individual object failures
// are logged and counted, never fatal.
func (s *Syncer) SyncAll(ctx context.Context) (int, error) {
	files, err := s.store.ListFiles()
	if err != nil {
		return 0, err
	}
	synced := 0
	for id, record := range s.store.Metadata() {
		if err := s.putObject(ctx, ClassNode, ObjectID(ClassNode, id), NodeProperties(record)); err != nil {
			s.log.Warn("node sync failed", zap.String("id", id), zap.Error(err))
			continue
		}
		synced++
	}
	for _, edge := range s.store.Edges() {
		key := edge.From + "->" + edge.To + ":" + edge.Type
		if err := s.putObject(ctx, ClassEdge, ObjectID(ClassEdge, key), EdgeProperties(edge)); err != nil {
			s.log.Warn("edge sync failed", zap.String("edge", key), zap.Error(err))
			continue
		}
		synced++
	}
	for _, file := range files {
		if err := s.putObject(ctx, ClassFile, ObjectID(ClassFile, file.ID), FileProperties(file)); err != nil {
			s.log.Warn("file sync failed", zap.String("id", file.ID), zap.Error(err))
			continue
		}
		synced++
	}
	s.log.Info("canvas synced to weaviate", zap.Int("objects", synced))
	return synced, nil
}

func (s *Syncer) putObject(ctx context.Context, class, id string, props map[string]any) error {
	_, err := s.client.Data().Creator().
		WithClassName(class).
		WithID(id).
		WithProperties(props).
		Do(ctx)
	return err
}

// ObjectID derives a stable Weaviate object id from a class and canvas key.
func ObjectID(class, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(class+"/"+key)).String()
}

// NodeProperties maps a node record to its Weaviate document.
func NodeProperties(record canvas.NodeRecord) map[string]any {
	props := map[string]any{
		"nodeId":      record.ID,
		"nodeType":    record.Type,
		"description": record.Description,
	}
	if record.Type == canvas.NodeTypeFile {
		props["fileName"] = record.FileName
		props["status"] = record.Status
	} else {
		props["name"] = record.Name
	}
	return props
}

// EdgeProperties maps an edge to its Weaviate document.
func EdgeProperties(edge canvas.Edge) map[string]any {
	return map[string]any{
		"fromId":      edge.From,
		"toId":        edge.To,
		"edgeType":    edge.Type,
		"description": edge.Description,
	}
}

// FileProperties maps a file view, contents included, to its Weaviate
// document.
func FileProperties(file canvas.FileView) map[string]any {
	return map[string]any{
		"nodeId":      file.ID,
		"fileName":    file.FileName,
		"fileType":    file.FileType,
		"description": file.Description,
		"content":     file.Content,
	}
}
