// Package storetest provides a conformance suite for storage engines.
//
// Engine packages call Run from their own tests with a factory that
// builds a fresh store, giving every engine the same coverage of the
// Store contract: round trips, absent keys, overwrites, streams, key
// listing, malformed payloads, and closed-store behavior.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yndnr/kvstash-go/pkg/storage"
)

// Factory builds a fresh, empty store for one subtest. Implementations
// should register cleanup with t.Cleanup; the suite also closes stores
// itself, relying on Close being idempotent.
type Factory func(t *testing.T) storage.Store

type payload struct {
	Text string `json:"text"`
	N    int    `json:"n"`
}

// Run exercises the Store contract against stores built by factory.
func Run(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()
		want := payload{Text: "conformance", N: 7}

		if err := s.Put(ctx, id, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, found, err := storage.Load[payload](ctx, s, id)
		if err != nil || !found {
			t.Fatalf("Load = (found=%v, err=%v)", found, err)
		}
		if got != want {
			t.Errorf("Load = %+v, want %+v", got, want)
		}
	})

	t.Run("RoundTripAfterFlush", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()
		want := payload{Text: "durable"}

		if err := s.Put(ctx, id, want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}

		got, found, err := storage.Load[payload](ctx, s, id)
		if err != nil || !found {
			t.Fatalf("Load = (found=%v, err=%v)", found, err)
		}
		if got != want {
			t.Errorf("Load = %+v, want %+v", got, want)
		}
	})

	t.Run("AbsentKey", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()

		var out payload
		if found, err := s.Get(ctx, id, &out); err != nil || found {
			t.Errorf("Get = (%v, %v), want (false, nil)", found, err)
		}
		if _, found, err := s.Open(ctx, id); err != nil || found {
			t.Errorf("Open = (found=%v, err=%v), want (false, nil)", found, err)
		}
		if found, err := s.Exists(ctx, id); err != nil || found {
			t.Errorf("Exists = (%v, %v), want (false, nil)", found, err)
		}

		got, found, err := storage.Load[payload](ctx, s, id)
		if err != nil || found {
			t.Errorf("Load = (found=%v, err=%v), want (false, nil)", found, err)
		}
		if got != (payload{}) {
			t.Errorf("Load = %+v, want zero value", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()

		if err := s.Put(ctx, id, payload{Text: "first"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := s.Put(ctx, id, payload{Text: "second"}); err != nil {
			t.Fatalf("second Put failed: %v", err)
		}

		got, found, err := storage.Load[payload](ctx, s, id)
		if err != nil || !found {
			t.Fatalf("Load = (found=%v, err=%v)", found, err)
		}
		if got.Text != "second" {
			t.Errorf("Load = %+v, want the second payload", got)
		}
	})

	t.Run("ExistsMatchesGet", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()

		if err := s.Put(ctx, id, payload{Text: "present"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		found, err := s.Exists(ctx, id)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		var out payload
		gotFound, err := s.Get(ctx, id, &out)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found != gotFound {
			t.Errorf("Exists = %v but Get found = %v", found, gotFound)
		}
	})

	t.Run("StreamRoundTrip", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()
		raw := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 256)

		if err := s.PutReader(ctx, id, bytes.NewReader(raw)); err != nil {
			t.Fatalf("PutReader failed: %v", err)
		}

		r, found, err := s.Open(ctx, id)
		if err != nil || !found {
			t.Fatalf("Open = (found=%v, err=%v)", found, err)
		}
		got, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Error("streamed bytes differ from original")
		}
	})

	t.Run("EmptyStream", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()

		if err := s.PutReader(ctx, id, bytes.NewReader(nil)); err != nil {
			t.Fatalf("PutReader failed: %v", err)
		}
		if found, err := s.Exists(ctx, id); err != nil || !found {
			t.Errorf("Exists after empty write = (%v, %v), want (true, nil)", found, err)
		}

		r, found, err := s.Open(ctx, id)
		if err != nil || !found {
			t.Fatalf("Open = (found=%v, err=%v)", found, err)
		}
		got, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("empty entry read back %d bytes", len(got))
		}
	})

	t.Run("Keys", func(t *testing.T) {
		s := factory(t)

		want := map[uuid.UUID]bool{}
		for i := 0; i < 5; i++ {
			id := uuid.New()
			want[id] = true
			if err := s.Put(ctx, id, payload{N: i}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
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
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()

		if err := s.PutReader(ctx, id, strings.NewReader("{not json")); err != nil {
			t.Fatalf("PutReader failed: %v", err)
		}

		var out payload
		if _, err := s.Get(ctx, id, &out); !errors.Is(err, storage.ErrMalformedEntry) {
			t.Errorf("Get = %v, want ErrMalformedEntry", err)
		}
	})

	t.Run("NilValue", func(t *testing.T) {
		s := factory(t)

		if err := s.Put(ctx, uuid.New(), nil); !errors.Is(err, storage.ErrNilValue) {
			t.Errorf("Put(nil) = %v, want ErrNilValue", err)
		}
	})

	t.Run("ClosedStore", func(t *testing.T) {
		s := factory(t)
		id := uuid.New()

		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second Close = %v, want nil", err)
		}

		if err := s.Put(ctx, id, payload{}); !errors.Is(err, storage.ErrClosed) {
			t.Errorf("Put after Close = %v, want ErrClosed", err)
		}
		var out payload
		if _, err := s.Get(ctx, id, &out); !errors.Is(err, storage.ErrClosed) {
			t.Errorf("Get after Close = %v, want ErrClosed", err)
		}
		if err := s.Flush(); !errors.Is(err, storage.ErrClosed) {
			t.Errorf("Flush after Close = %v, want ErrClosed", err)
		}
	})

	t.Run("StatsIdentity", func(t *testing.T) {
		s := factory(t)

		if err := s.Put(ctx, uuid.New(), payload{Text: "counted"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		stats := s.Stats()
		if stats.Engine == "" {
			t.Error("Stats.Engine is empty")
		}
		if stats.Writes != 1 {
			t.Errorf("Stats.Writes = %d, want 1", stats.Writes)
		}
	})
}
