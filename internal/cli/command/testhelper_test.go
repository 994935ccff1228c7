package command

import (
	"context"
	"flag"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvstash-go/pkg/storage/filestore"
)

// makeTestContext builds a CLI context with the global flags plus the
// extra command flags a single action needs. extraFlags maps flag name
// to its parsed value; positional args follow all flags because flag
// parsing stops at the first non-flag argument.
func makeTestContext(t *testing.T, extraFlags map[string]any, args []string, globalArgs ...string) *cli.Context {
	t.Helper()

	allFlags := append([]cli.Flag{}, globalFlags()...)
	existing := make(map[string]bool)
	for _, f := range allFlags {
		for _, name := range f.Names() {
			existing[name] = true
		}
	}

	cliArgs := append([]string{}, globalArgs...)
	for name, val := range extraFlags {
		if !existing[name] {
			switch val.(type) {
			case string:
				allFlags = append(allFlags, &cli.StringFlag{Name: name})
			case int:
				allFlags = append(allFlags, &cli.IntFlag{Name: name})
			case bool:
				allFlags = append(allFlags, &cli.BoolFlag{Name: name})
			case float64:
				allFlags = append(allFlags, &cli.Float64Flag{Name: name})
			case time.Duration:
				allFlags = append(allFlags, &cli.DurationFlag{Name: name})
			default:
				t.Fatalf("unsupported flag type for %q", name)
			}
			existing[name] = true
		}

		switch v := val.(type) {
		case string:
			if v != "" {
				cliArgs = append(cliArgs, "--"+name, v)
			}
		case int:
			cliArgs = append(cliArgs, "--"+name, strconv.Itoa(v))
		case bool:
			if v {
				cliArgs = append(cliArgs, "--"+name)
			}
		case float64:
			cliArgs = append(cliArgs, "--"+name, strconv.FormatFloat(v, 'f', -1, 64))
		case time.Duration:
			cliArgs = append(cliArgs, "--"+name, v.String())
		}
	}
	cliArgs = append(cliArgs, args...)

	app := &cli.App{
		Name:  "kvstash",
		Flags: globalFlags(),
	}

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range allFlags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := set.Parse(cliArgs); err != nil {
		t.Fatalf("parse args %v: %v", cliArgs, err)
	}

	return cli.NewContext(app, set, nil)
}

// storeArgs returns global flags pointing at a scratch directory store
// and an absent config file, keeping tests away from any real
// ~/.kvstash.
func storeArgs(t *testing.T, storeDir string) []string {
	t.Helper()
	return []string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--store", "dir:" + storeDir,
	}
}

// seedStore writes documents into a directory store and returns their
// keys.
func seedStore(t *testing.T, dir string, n int) []uuid.UUID {
	t.Helper()

	st, err := filestore.Open(filestore.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("open seed store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	keys := make([]uuid.UUID, n)
	for i := range keys {
		keys[i] = uuid.New()
		doc := map[string]any{"seq": i}
		if err := st.Put(ctx, keys[i], doc); err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}
	return keys
}

// openSeeded reopens a seeded directory store for verification.
func openSeeded(t *testing.T, dir string) *filestore.Store {
	t.Helper()
	st, err := filestore.Open(filestore.DefaultConfig(dir))
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
