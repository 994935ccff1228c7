// Package storage provides cross-engine bulk transfer.
package storage

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// CopyOption configures Copy.
type CopyOption func(*copyOptions)

type copyOptions struct {
	workers int
}

// WithWorkers sets the number of concurrent copy workers.
func WithWorkers(n int) CopyOption {
	return func(o *copyOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// Copy transfers every entry from src to dst and flushes dst. It
// returns the number of entries copied.
//
// Payloads travel through the raw stream interface: src decrypts with
// its own cipher and dst re-encrypts with its own, so the two stores
// need not share key material. Entries already present in dst under
// the same key are overwritten. The first error aborts the copy;
// entries copied before the abort remain in dst.
func Copy(ctx context.Context, dst, src Store, opts ...CopyOption) (int, error) {
	options := copyOptions{workers: defaultCopyWorkers()}
	for _, opt := range opts {
		opt(&options)
	}

	keys, err := src.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: copy: list keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, dst.Flush()
	}

	pool, err := ants.NewPool(options.workers)
	if err != nil {
		return 0, fmt.Errorf("storage: copy: create pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		copied   int
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for _, id := range keys {
		if failed() {
			break
		}
		if err := ctx.Err(); err != nil {
			fail(err)
			break
		}

		id := id
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := copyEntry(ctx, dst, src, id); err != nil {
				fail(err)
				return
			}
			mu.Lock()
			copied++
			mu.Unlock()
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("storage: copy: submit: %w", err))
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		return copied, firstErr
	}
	if err := dst.Flush(); err != nil {
		return copied, fmt.Errorf("storage: copy: flush destination: %w", err)
	}
	return copied, nil
}

func copyEntry(ctx context.Context, dst, src Store, id uuid.UUID) error {
	r, found, err := src.Open(ctx, id)
	if err != nil {
		return fmt.Errorf("storage: copy %s: open source: %w", LeafName(id), err)
	}
	if !found {
		return nil
	}
	defer r.Close()

	if err := dst.PutReader(ctx, id, r); err != nil {
		return fmt.Errorf("storage: copy %s: write destination: %w", LeafName(id), err)
	}
	return nil
}

func defaultCopyWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}
