package zipstore

import (
	"path/filepath"
	"testing"

	"github.com/yndnr/kvstash-go/pkg/storage"
	"github.com/yndnr/kvstash-go/pkg/storage/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "db.zip")))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
