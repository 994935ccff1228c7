package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/yndnr/kvstash-go/pkg/crypto/adaptive"
	"github.com/yndnr/kvstash-go/pkg/storage"
)

type document struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func testConfig(dir string) Config {
	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour // keep auto GC out of tests
	return cfg
}

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(testConfig(dir))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestOpenValidation(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open without dir should fail")
	}
}

func TestRoundTripWithReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	id := uuid.New()
	want := document{Name: "aurora", Count: 42}

	s := openTestStore(t, dir)
	if err := s.Put(ctx, id, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := storage.Load[document](ctx, s, id)
	if err != nil || !found {
		t.Fatalf("Load = (found=%v, err=%v)", found, err)
	}
	if got != want {
		t.Errorf("Load = %+v, want %+v", got, want)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2 := openTestStore(t, dir)
	defer s2.Close()

	got, found, err = storage.Load[document](ctx, s2, id)
	if err != nil || !found {
		t.Fatalf("Load after reopen = (found=%v, err=%v)", found, err)
	}
	if got != want {
		t.Errorf("Load after reopen = %+v, want %+v", got, want)
	}
}

func TestInMemoryMode(t *testing.T) {
	ctx := context.Background()

	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.gc != nil {
		t.Error("memory mode should not start the GC runner")
	}

	id := uuid.New()
	if err := s.Put(ctx, id, document{Name: "ephemeral"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got document
	if found, err := s.Get(ctx, id, &got); err != nil || !found {
		t.Fatalf("Get = (%v, %v)", found, err)
	}
	if got.Name != "ephemeral" {
		t.Errorf("Get = %+v", got)
	}

	if err := s.Flush(); err != nil {
		t.Errorf("Flush in memory mode = %v, want nil", err)
	}
}

func TestAbsentKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	id := uuid.New()

	var out document
	found, err := s.Get(ctx, id, &out)
	if err != nil || found {
		t.Errorf("Get on absent key = (%v, %v), want (false, nil)", found, err)
	}
	if _, found, err := s.Open(ctx, id); err != nil || found {
		t.Errorf("Open on absent key = (found=%v, err=%v), want (false, nil)", found, err)
	}
	if found, err := s.Exists(ctx, id); err != nil || found {
		t.Errorf("Exists on absent key = (%v, %v), want (false, nil)", found, err)
	}

	doc, found, err := storage.Load[document](ctx, s, id)
	if err != nil || found {
		t.Errorf("Load on absent key = (found=%v, err=%v), want (false, nil)", found, err)
	}
	if doc != (document{}) {
		t.Errorf("Load on absent key = %+v, want zero value", doc)
	}
}

func TestOverwrite(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	id := uuid.New()
	if err := s.Put(ctx, id, document{Name: "first"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, id, document{Name: "second"}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	var got document
	if found, err := s.Get(ctx, id, &got); err != nil || !found {
		t.Fatalf("Get = (%v, %v)", found, err)
	}
	if got.Name != "second" {
		t.Errorf("Get = %+v, want the second payload", got)
	}
}

func TestPutReaderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	id := uuid.New()
	payload := bytes.Repeat([]byte{0x00, 0xFF, 0x42}, 1024)

	if err := s.PutReader(ctx, id, bytes.NewReader(payload)); err != nil {
		t.Fatalf("PutReader failed: %v", err)
	}

	r, found, err := s.Open(ctx, id)
	if err != nil || !found {
		t.Fatalf("Open = (found=%v, err=%v)", found, err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("streamed payload differs from original")
	}
}

func TestMalformedPayload(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	id := uuid.New()
	if err := s.PutReader(ctx, id, strings.NewReader("{not json")); err != nil {
		t.Fatalf("PutReader failed: %v", err)
	}

	var out document
	if _, err := s.Get(ctx, id, &out); !errors.Is(err, storage.ErrMalformedEntry) {
		t.Errorf("Get = %v, want ErrMalformedEntry", err)
	}
}

func TestKeysSkipForeign(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	want := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		id := uuid.New()
		want[id] = true
		if err := s.Put(ctx, id, document{Count: i}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	// A key that is not 16 bytes is not one of ours.
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("scratch"), []byte("x"))
	})
	if err != nil {
		t.Fatalf("Set foreign key failed: %v", err)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != len(want) {
		t.Fatalf("Keys returned %d keys, want %d", len(keys), len(want))
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("Keys returned unexpected key %s", k)
		}
	}
}

func TestEntries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	a := uuid.New()
	b := uuid.New()
	if err := s.Put(ctx, a, document{Name: "a", Count: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, b, document{Name: "b", Count: 2}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Foreign keys are skipped the same way Keys skips them.
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("scratch"), []byte("x"))
	})
	if err != nil {
		t.Fatalf("Set foreign key failed: %v", err)
	}

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries returned %d entries, want 2", len(entries))
	}
	seen := map[uuid.UUID]bool{}
	for _, e := range entries {
		seen[e.ID] = true
		if e.Size <= 0 {
			t.Errorf("entry %s Size = %d, want > 0", e.ID, e.Size)
		}
		if !e.Modified.IsZero() {
			t.Errorf("entry %s Modified = %v, want zero", e.ID, e.Modified)
		}
	}
	if !seen[a] || !seen[b] {
		t.Error("Entries missing a stored key")
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, t.TempDir())

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	id := uuid.New()
	if err := s.Put(ctx, id, document{}); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Put after Close = %v, want ErrClosed", err)
	}
	if _, err := s.Get(ctx, id, &document{}); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
	if err := s.Flush(); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
	if _, err := s.Keys(ctx); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Keys after Close = %v, want ErrClosed", err)
	}
}

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	key, err := adaptive.GenerateKey(32)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cipher, err := adaptive.New(key)
	if err != nil {
		t.Fatalf("New cipher failed: %v", err)
	}

	cfg := testConfig(dir)
	cfg.Cipher = cipher

	id := uuid.New()
	secret := "meet me at the lighthouse"

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Put(ctx, id, document{Name: secret}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Same key decrypts through a fresh handle.
	s2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	got, found, err := storage.Load[document](ctx, s2, id)
	if err != nil || !found {
		t.Fatalf("Load = (found=%v, err=%v)", found, err)
	}
	if got.Name != secret {
		t.Error("decrypted payload differs from original")
	}

	// The wrong key fails as a malformed payload.
	otherKey, _ := adaptive.GenerateKey(32)
	otherCipher, _ := adaptive.New(otherKey)
	badCfg := testConfig(dir)
	badCfg.Cipher = otherCipher

	s3, err := Open(badCfg)
	if err != nil {
		t.Fatalf("open with wrong key failed early: %v", err)
	}
	defer s3.Close()

	if _, err := s3.Get(ctx, id, &document{}); !errors.Is(err, storage.ErrMalformedEntry) {
		t.Errorf("Get with wrong key = %v, want ErrMalformedEntry", err)
	}
}

func TestFlushAndStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openTestStore(t, dir)
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Put(ctx, uuid.New(), document{Count: i}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	stats := s.Stats()
	if stats.Engine != storage.EngineBadger {
		t.Errorf("Engine = %q, want %q", stats.Engine, storage.EngineBadger)
	}
	if stats.Path != dir {
		t.Errorf("Path = %q, want %q", stats.Path, dir)
	}
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.Writes != 3 {
		t.Errorf("Writes = %d, want 3", stats.Writes)
	}
	if stats.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", stats.Flushes)
	}
}

func TestGCOnEmptyDatabase(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	// Nothing to rewrite; the pass must finish without error noise
	// turning into a failure.
	if ok := s.gc.Trigger(); !ok {
		t.Error("manual GC trigger was skipped on an idle store")
	}
}
