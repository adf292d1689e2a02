// Package workflow persists graph documents and bridges live editing
// sessions to storage: every structural mutation is routed to the correct
// nesting level of the root document and followed by an asynchronous save.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jaeone94/comfy-mobile-graph/graph"
	"github.com/rs/zerolog/log"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidDocumentID = errors.New("invalid document id")
)

// DocumentInfo describes one stored document.
type DocumentInfo struct {
	ID       string
	Size     int64
	Modified time.Time
}

// Store is the durable storage for graph documents.
type Store interface {
	Load(ctx context.Context, id string) (*graph.Graph, error)
	Save(ctx context.Context, id string, g *graph.Graph) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]DocumentInfo, error)
}

// FileStore keeps one JSON file per document in a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workflow directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// pathFor validates a document id and maps it to a file path. Ids must be
// plain names; anything that could traverse outside the directory is
// rejected.
func (s *FileStore) pathFor(id string) (string, error) {
	if id == "" || strings.Contains(id, "..") ||
		strings.ContainsAny(id, `/\`) {
		return "", ErrInvalidDocumentID
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*graph.Graph, error) {
	path, err := s.pathFor(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("reading document %q: %w", id, err)
	}
	g, err := graph.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decoding document %q: %w", id, err)
	}
	return g, nil
}

func (s *FileStore) Save(ctx context.Context, id string, g *graph.Graph) error {
	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document %q: %w", id, err)
	}

	// write-then-rename so a crash mid-save never truncates the document
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing document %q: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing document %q: %w", id, err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.pathFor(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	return nil
}

// List returns stored documents, newest first.
func (s *FileStore) List(ctx context.Context) ([]DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing workflow directory: %w", err)
	}

	docs := make([]DocumentInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			log.Warn().Str("file", e.Name()).Err(err).Msg("skipping unreadable workflow file")
			continue
		}
		docs = append(docs, DocumentInfo{
			ID:       strings.TrimSuffix(e.Name(), ".json"),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Modified.After(docs[j].Modified) })
	return docs, nil
}
