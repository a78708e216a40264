package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/halide-io/sluice/metrics"
	"github.com/halide-io/sluice/types"
)

func TestInstrumented_CountsOpens(t *testing.T) {
	stub := NewStub()
	collector := metrics.NewCollector("stub", "test")
	conn := NewInstrumented(stub, collector)
	ctx := context.Background()

	if err := conn.Open(ctx, &types.FileOpenFrame{FileID: "a"}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := conn.Open(ctx, &types.FileOpenFrame{FileID: "b"}); err != nil {
		t.Fatalf("open: %v", err)
	}

	snap := collector.Snapshot()
	if snap.FilesOpened != 2 {
		t.Errorf("FilesOpened = %d, want 2", snap.FilesOpened)
	}
	if snap.OpenFailures != 0 {
		t.Errorf("OpenFailures = %d, want 0", snap.OpenFailures)
	}
}

func TestInstrumented_CountsFailures(t *testing.T) {
	stub := NewStub()
	stub.FailOpen = errors.New("open failed")
	stub.FailSend = errors.New("send failed")
	stub.FailRelease = errors.New("release failed")

	collector := metrics.NewCollector("stub", "test")
	conn := NewInstrumented(stub, collector)
	ctx := context.Background()

	if err := conn.Open(ctx, &types.FileOpenFrame{FileID: "a"}); err == nil {
		t.Fatal("expected open failure")
	}
	if err := conn.Send(ctx, []byte{0}); err == nil {
		t.Fatal("expected send failure")
	}
	if err := conn.Release(); err == nil {
		t.Fatal("expected release failure")
	}

	snap := collector.Snapshot()
	if snap.OpenFailures != 1 {
		t.Errorf("OpenFailures = %d, want 1", snap.OpenFailures)
	}
	if snap.SendFailures != 1 {
		t.Errorf("SendFailures = %d, want 1", snap.SendFailures)
	}
	if snap.ReleaseFailures != 1 {
		t.Errorf("ReleaseFailures = %d, want 1", snap.ReleaseFailures)
	}
	if snap.FilesOpened != 0 {
		t.Errorf("FilesOpened = %d, want 0", snap.FilesOpened)
	}
}

func TestInstrumented_PassesErrorsThrough(t *testing.T) {
	stub := NewStub()
	boom := errors.New("boom")
	stub.FailSend = boom

	conn := NewInstrumented(stub, metrics.NewCollector("stub", "test"))

	err := conn.Send(context.Background(), []byte{0})
	if !errors.Is(err, boom) {
		t.Errorf("Send = %v, want the inner error", err)
	}
}

func TestInstrumented_DelegatesRecording(t *testing.T) {
	stub := NewStub()
	conn := NewInstrumented(stub, metrics.NewCollector("stub", "test"))

	frame := []byte{1, 2, 3}
	if err := conn.Send(context.Background(), frame); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(stub.Frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(stub.Frames))
	}
	if err := conn.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !stub.Released {
		t.Error("release not delegated")
	}
}
