package storage

import (
	"sync"
	"testing"
	"time"
)

func TestCountersSnapshot(t *testing.T) {
	var c Counters

	c.RecordWrite(10)
	c.RecordWrite(20)
	c.RecordRead(5)
	c.RecordFlush(10 * time.Millisecond)
	c.RecordFlush(5 * time.Millisecond)

	got := c.Snapshot()
	if got.Writes != 2 || got.BytesWritten != 30 {
		t.Errorf("writes = (%d, %d), want (2, 30)", got.Writes, got.BytesWritten)
	}
	if got.Reads != 1 || got.BytesRead != 5 {
		t.Errorf("reads = (%d, %d), want (1, 5)", got.Reads, got.BytesRead)
	}
	if got.Flushes != 2 {
		t.Errorf("flushes = %d, want 2", got.Flushes)
	}
	if got.FlushTime != 15*time.Millisecond {
		t.Errorf("flush time = %v, want 15ms", got.FlushTime)
	}
}

func TestCountersConcurrent(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordWrite(1)
				c.RecordRead(2)
			}
		}()
	}
	wg.Wait()

	got := c.Snapshot()
	if got.Writes != 1000 || got.BytesWritten != 1000 {
		t.Errorf("writes = (%d, %d), want (1000, 1000)", got.Writes, got.BytesWritten)
	}
	if got.Reads != 1000 || got.BytesRead != 2000 {
		t.Errorf("reads = (%d, %d), want (1000, 2000)", got.Reads, got.BytesRead)
	}
}
