package command

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/yndnr/kvstash-go/pkg/storage/filestore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImportCommand_Flags(t *testing.T) {
	cmd := ImportCommand()
	if cmd.Name != "import" {
		t.Errorf("Name = %q, want import", cmd.Name)
	}

	flagNames := make(map[string]bool)
	for _, flag := range cmd.Flags {
		flagNames[flag.Names()[0]] = true
	}
	if !flagNames["watch"] {
		t.Error("import should have --watch flag")
	}
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.Open(filestore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	log := discardLogger()

	id := uuid.New()
	path := filepath.Join(dir, id.String()+".json")
	if err := os.WriteFile(path, []byte(`{"kind":"imported"}`), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := importFile(ctx, st, path, log); err != nil {
		t.Fatalf("importFile failed: %v", err)
	}

	var doc map[string]any
	found, err := st.Get(ctx, id, &doc)
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v), want entry", found, err)
	}
	if doc["kind"] != "imported" {
		t.Errorf("stored kind = %v, want imported", doc["kind"])
	}
}

func TestImportFile_BadName(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.Open(filestore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	path := filepath.Join(dir, "notes.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := importFile(context.Background(), st, path, discardLogger()); err == nil {
		t.Error("expected error for a file name that is not a key")
	}
}

func TestImportFile_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	st, err := filestore.Open(filestore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	path := filepath.Join(dir, uuid.New().String()+".json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := importFile(context.Background(), st, path, discardLogger()); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestImportDir(t *testing.T) {
	srcDir := t.TempDir()

	good := []uuid.UUID{uuid.New(), uuid.New()}
	for _, id := range good {
		path := filepath.Join(srcDir, id.String()+".json")
		if err := os.WriteFile(path, []byte(`{"kind":"bulk"}`), 0600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	// Neither of these should import: one bad name, one bad payload.
	if err := os.WriteFile(filepath.Join(srcDir, "readme.json"), []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, uuid.New().String()+".json"), []byte("{broken"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	st, err := filestore.Open(filestore.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	imported, err := importDir(context.Background(), st, srcDir, discardLogger())
	if err != nil {
		t.Fatalf("importDir failed: %v", err)
	}
	if imported != len(good) {
		t.Errorf("imported = %d, want %d", imported, len(good))
	}

	for _, id := range good {
		found, err := st.Exists(context.Background(), id)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !found {
			t.Errorf("entry %s missing after import", id)
		}
	}
}

func TestRunImport(t *testing.T) {
	srcDir := t.TempDir()
	storeDir := t.TempDir()

	id := uuid.New()
	path := filepath.Join(srcDir, id.String()+".json")
	if err := os.WriteFile(path, []byte(`{"via":"run"}`), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	c := makeTestContext(t, nil, []string{srcDir}, storeArgs(t, storeDir)...)
	if err := runImport(c); err != nil {
		t.Fatalf("runImport failed: %v", err)
	}

	st := openSeeded(t, storeDir)
	found, err := st.Exists(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("Exists = (%v, %v), want entry", found, err)
	}
}

func TestRunImport_MissingSource(t *testing.T) {
	c := makeTestContext(t, nil, nil, storeArgs(t, t.TempDir())...)
	if err := runImport(c); err == nil {
		t.Error("expected error without SRC_DIR")
	}
}
