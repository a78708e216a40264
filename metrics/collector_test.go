package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("tcp", "client-1")

	c.IncFileOpened()
	c.AddChunkSent(512)
	c.AddChunkSent(512)
	c.AddChunkSent(200)
	c.IncSendFailure()
	c.IncFileCompleted()

	snap := c.Snapshot()

	if snap.FilesOpened != 1 {
		t.Errorf("FilesOpened = %d, want 1", snap.FilesOpened)
	}
	if snap.FilesCompleted != 1 {
		t.Errorf("FilesCompleted = %d, want 1", snap.FilesCompleted)
	}
	if snap.ChunksSent != 3 {
		t.Errorf("ChunksSent = %d, want 3", snap.ChunksSent)
	}
	if snap.BytesSent != 1224 {
		t.Errorf("BytesSent = %d, want 1224", snap.BytesSent)
	}
	if snap.SendFailures != 1 {
		t.Errorf("SendFailures = %d, want 1", snap.SendFailures)
	}
	if snap.Transport != "tcp" {
		t.Errorf("Transport = %q, want %q", snap.Transport, "tcp")
	}
	if snap.ClientID != "client-1" {
		t.Errorf("ClientID = %q, want %q", snap.ClientID, "client-1")
	}
}

func TestCollector_NilReceiver(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.IncFileOpened()
	c.IncFileCompleted()
	c.AddChunkSent(100)
	c.IncSendFailure()
	c.IncOpenFailure()
	c.IncReleaseFailure()

	snap := c.Snapshot()
	if snap.ChunksSent != 0 {
		t.Errorf("nil collector ChunksSent = %d, want 0", snap.ChunksSent)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("stub", "")

	c.AddChunkSent(10)
	snap := c.Snapshot()
	c.AddChunkSent(10)

	if snap.ChunksSent != 1 {
		t.Errorf("snapshot mutated after later increments: ChunksSent = %d, want 1", snap.ChunksSent)
	}
	if got := c.Snapshot().ChunksSent; got != 2 {
		t.Errorf("ChunksSent = %d, want 2", got)
	}
}

func TestCollector_ConcurrentIncrements(t *testing.T) {
	c := NewCollector("stub", "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.AddChunkSent(1)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.ChunksSent != 800 {
		t.Errorf("ChunksSent = %d, want 800", snap.ChunksSent)
	}
	if snap.BytesSent != 800 {
		t.Errorf("BytesSent = %d, want 800", snap.BytesSent)
	}
}
