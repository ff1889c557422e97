package filesystem

import (
	"context"
	"errors"
	"os"
	"paint-server/core"
	"path/filepath"
	"strings"
	"testing"
)

const testPNG = "data:image/png;base64,AAAA"

func TestNewLayerStore_CreatesDirectory(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "nested", "path", "test")
	store := NewLayerStore(tempDir)

	if store == nil {
		t.Fatal("NewLayerStore() returned nil")
	}

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Error("NewLayerStore() did not create nested directory structure")
	}
}

func TestCreate_Success(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLayerStore(tempDir)

	layer, err := store.Create(context.Background(), "abc123", "1", []byte(testPNG))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	filePath := filepath.Join(tempDir, "abc123", layer.ID+".json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Error("Create() did not create file on disk")
	}

	entries, _ := os.ReadDir(filepath.Join(tempDir, "abc123"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("Temp file left behind: %s", e.Name())
		}
	}
}

func TestCreateAndList_RoundTrip(t *testing.T) {
	store := NewLayerStore(t.TempDir())
	ctx := context.Background()

	if _, err := store.Create(ctx, "abc123", "1", []byte(testPNG)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	layers, err := store.ListBySession(ctx, "abc123")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("Expected 1 layer, got %d", len(layers))
	}
	if layers[0].LayerID != "1" || string(layers[0].ImageData) != testPNG {
		t.Errorf("Round trip mismatch: %+v", layers[0])
	}
}

func TestListBySession_CreationOrder(t *testing.T) {
	store := NewLayerStore(t.TempDir())
	ctx := context.Background()

	want := []string{"1", "2", "1.5", "3"}
	for _, id := range want {
		if _, err := store.Create(ctx, "abc123", id, []byte(testPNG)); err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}
	}

	layers, err := store.ListBySession(ctx, "abc123")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(layers) != len(want) {
		t.Fatalf("Layer count mismatch: got %d, want %d", len(layers), len(want))
	}
	for i, layer := range layers {
		if layer.LayerID != want[i] {
			t.Errorf("Layer %d mismatch: got %q, want %q", i, layer.LayerID, want[i])
		}
	}
}

func TestListBySession_UnknownSession(t *testing.T) {
	store := NewLayerStore(t.TempDir())

	layers, err := store.ListBySession(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if layers == nil || len(layers) != 0 {
		t.Errorf("Expected empty slice, got %v", layers)
	}
}

func TestListBySession_SkipsForeignFiles(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLayerStore(tempDir)
	ctx := context.Background()

	if _, err := store.Create(ctx, "abc123", "1", []byte(testPNG)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	sessionDir := filepath.Join(tempDir, "abc123")
	_ = os.WriteFile(filepath.Join(sessionDir, ".tmp-123"), []byte("partial"), 0644)
	_ = os.WriteFile(filepath.Join(sessionDir, "notes.txt"), []byte("hello"), 0644)
	_ = os.WriteFile(filepath.Join(sessionDir, "broken.json"), []byte("{not json"), 0644)

	layers, err := store.ListBySession(ctx, "abc123")
	if err != nil {
		t.Fatalf("ListBySession() failed: %v", err)
	}
	if len(layers) != 1 {
		t.Errorf("Expected 1 layer, got %d", len(layers))
	}
}

func TestListBySession_ReadFailure(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLayerStore(tempDir)
	ctx := context.Background()

	if _, err := store.Create(ctx, "abc123", "1", []byte(testPNG)); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// A record name that resolves to a directory cannot be read.
	sessionDir := filepath.Join(tempDir, "abc123")
	if err := os.Symlink(t.TempDir(), filepath.Join(sessionDir, "unreadable.json")); err != nil {
		t.Fatal(err)
	}

	layers, err := store.ListBySession(ctx, "abc123")
	if err == nil {
		t.Errorf("ListBySession() returned %d layers, want read error", len(layers))
	}
}

func TestCreate_RejectsPathTraversal(t *testing.T) {
	store := NewLayerStore(t.TempDir())
	ctx := context.Background()

	for _, sessionID := range []string{"", ".", "..", "../escape", "a/b"} {
		_, err := store.Create(ctx, sessionID, "1", []byte(testPNG))
		if !errors.Is(err, core.ErrBadIdentifier) {
			t.Errorf("Create(%q) error = %v, want ErrBadIdentifier", sessionID, err)
		}
	}
}

func TestCreate_WriteFailure(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLayerStore(tempDir)

	// A regular file where the session directory should go makes MkdirAll fail.
	if err := os.WriteFile(filepath.Join(tempDir, "blocked"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Create(context.Background(), "blocked", "1", []byte(testPNG))
	if !errors.Is(err, core.ErrWriteFailed) {
		t.Errorf("Create() error = %v, want ErrWriteFailed", err)
	}
}
