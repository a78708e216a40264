package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/halide-io/sluice/ingest"
	"github.com/halide-io/sluice/transport"
	"github.com/halide-io/sluice/types"
	"github.com/halide-io/sluice/wire"
)

// stubClient builds an ingest client over a recording stub.
func stubClient(t *testing.T, stub *transport.Stub, chunkSize int64) *ingest.Client {
	t.Helper()
	client, err := ingest.Init(
		func() (transport.Connector, error) { return stub, nil },
		ingest.WithChunkSize(chunkSize),
	)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return client
}

// writeTempFile writes content to a temp file and returns its path.
func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestTransfer_ChunksWholeFile(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 2500)
	path := writeTempFile(t, content)

	stub := transport.NewStub()
	client := stubClient(t, stub, 1024)

	choice := sendChoice{filePath: path, fileID: "payload.bin", chunkSize: 1024}
	code, err := transfer(context.Background(), client, choice)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if code != exitSuccess {
		t.Errorf("exit code = %d, want %d", code, exitSuccess)
	}

	if len(stub.Opens) != 1 || stub.Opens[0].FileID != "payload.bin" {
		t.Fatalf("opens = %+v, want one open for payload.bin", stub.Opens)
	}

	// 2500 bytes at 1024 per chunk: 1024 + 1024 + 452, then the final framing.
	acc := types.NewFileAccumulator("payload.bin")
	var total []byte
	for i, frame := range stub.Frames {
		decoder := wire.NewFrameDecoder(bytes.NewReader(frame))
		payload, err := decoder.ReadFrame()
		if err != nil {
			t.Fatalf("frames[%d]: %v", i, err)
		}
		chunk, err := wire.DecodeChunk(payload)
		if err != nil {
			t.Fatalf("frames[%d]: %v", i, err)
		}
		if !acc.Accept(chunk) {
			t.Fatalf("frames[%d]: sequence violation at seq %d", i, chunk.Seq)
		}
		total = append(total, chunk.Data...)
	}
	if !acc.Complete {
		t.Error("no final framing observed")
	}
	if !bytes.Equal(total, content) {
		t.Errorf("reassembled %d bytes, want %d identical bytes", len(total), len(content))
	}
	if !stub.Released {
		t.Error("connector not released")
	}
}

func TestTransfer_EmptyFile(t *testing.T) {
	path := writeTempFile(t, nil)

	stub := transport.NewStub()
	client := stubClient(t, stub, 1024)

	choice := sendChoice{filePath: path, fileID: "empty.bin", chunkSize: 1024}
	code, err := transfer(context.Background(), client, choice)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if code != exitSuccess {
		t.Errorf("exit code = %d, want %d", code, exitSuccess)
	}

	// An empty file still produces its final framing.
	if len(stub.Frames) != 1 {
		t.Fatalf("got %d frames, want 1 (final only)", len(stub.Frames))
	}
}

func TestTransfer_MissingFile(t *testing.T) {
	stub := transport.NewStub()
	client := stubClient(t, stub, 1024)

	choice := sendChoice{filePath: "/nonexistent/payload.bin", fileID: "x", chunkSize: 1024}
	code, err := transfer(context.Background(), client, choice)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if !stub.Released {
		t.Error("connector not released after failure")
	}
}

func TestTransfer_WriteFailureExitCode(t *testing.T) {
	path := writeTempFile(t, bytes.Repeat([]byte("y"), 100))

	stub := transport.NewStub()
	stub.FailSend = errors.New("receiver gone")
	client := stubClient(t, stub, 64)

	choice := sendChoice{filePath: path, fileID: "y.bin", chunkSize: 64}
	code, err := transfer(context.Background(), client, choice)
	if err == nil {
		t.Fatal("expected write failure")
	}
	if !ingest.IsWriteError(err) {
		t.Errorf("IsWriteError = false for %v", err)
	}
	if code != exitWrite {
		t.Errorf("exit code = %d, want %d", code, exitWrite)
	}
	if !stub.Released {
		t.Error("connector not released after write failure")
	}
}

func TestTransfer_CloseFailureExitCode(t *testing.T) {
	path := writeTempFile(t, []byte("z"))

	stub := transport.NewStub()
	stub.FailSendAfter = 1 // deliver the chunk, fail the final framing
	stub.FailSend = errors.New("receiver gone")
	client := stubClient(t, stub, 64)

	choice := sendChoice{filePath: path, fileID: "z.bin", chunkSize: 64}
	code, err := transfer(context.Background(), client, choice)
	if err == nil {
		t.Fatal("expected close failure")
	}
	if !ingest.IsCloseError(err) {
		t.Errorf("IsCloseError = false for %v", err)
	}
	if code != exitClose {
		t.Errorf("exit code = %d, want %d", code, exitClose)
	}
}

func TestBuildFactory_Validation(t *testing.T) {
	cases := []struct {
		name   string
		choice sendChoice
		ok     bool
	}{
		{"tcp without addr", sendChoice{transportType: "tcp"}, false},
		{"tcp with addr", sendChoice{transportType: "tcp", addr: "localhost:50100"}, true},
		{"ws without url", sendChoice{transportType: "ws"}, false},
		{"ws with url", sendChoice{transportType: "ws", url: "ws://localhost/ingest"}, true},
		{"redis without url", sendChoice{transportType: "redis"}, false},
		{"redis with url", sendChoice{transportType: "redis", url: "redis://localhost:6379"}, true},
		{"s3 without bucket", sendChoice{transportType: "s3"}, false},
		{"s3 with bucket", sendChoice{transportType: "s3", bucket: "ingest"}, true},
		{"unknown transport", sendChoice{transportType: "carrier-pigeon"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory, err := buildFactory(tc.choice)
			if tc.ok && (err != nil || factory == nil) {
				t.Errorf("buildFactory = (%v, %v), want a factory", factory, err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// newTestContext builds a cli.Context with the given flag values set.
func newTestContext(t *testing.T, args []string) *cli.Context {
	t.Helper()
	app := &cli.App{}
	set := flag.NewFlagSet("send", flag.ContinueOnError)
	for _, f := range SendCommand().Flags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	return cli.NewContext(app, set, nil)
}

func TestResolveSendChoice_Defaults(t *testing.T) {
	c := newTestContext(t, []string{"--file", "/data/frame.cbf"})

	choice, err := resolveSendChoice(c)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if choice.fileID != "/data/frame.cbf" {
		t.Errorf("fileID = %q, want the file path", choice.fileID)
	}
	if choice.chunkSize != DefaultChunkSize {
		t.Errorf("chunkSize = %d, want %d", choice.chunkSize, DefaultChunkSize)
	}
	if choice.transportType != "tcp" {
		t.Errorf("transportType = %q, want tcp", choice.transportType)
	}
}

func TestResolveSendChoice_ConfigFileDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sluice.yaml")
	cfgYAML := `transport:
  type: redis
  url: redis://localhost:6379/0
  channel: detector:frames
chunk_size: 4096
timeout: 3s
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := newTestContext(t, []string{"--file", "/data/frame.cbf", "--config", cfgPath})
	choice, err := resolveSendChoice(c)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if choice.transportType != "redis" {
		t.Errorf("transportType = %q, want redis", choice.transportType)
	}
	if choice.url != "redis://localhost:6379/0" {
		t.Errorf("url = %q, want the config value", choice.url)
	}
	if choice.channel != "detector:frames" {
		t.Errorf("channel = %q, want detector:frames", choice.channel)
	}
	if choice.chunkSize != 4096 {
		t.Errorf("chunkSize = %d, want 4096", choice.chunkSize)
	}
}

func TestResolveSendChoice_FlagsOverrideConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sluice.yaml")
	cfgYAML := `transport:
  type: redis
  url: redis://localhost:6379/0
chunk_size: 4096
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c := newTestContext(t, []string{
		"--file", "/data/frame.cbf",
		"--config", cfgPath,
		"--transport", "tcp",
		"--addr", "receiver:50100",
		"--chunk-size", "8192",
	})
	choice, err := resolveSendChoice(c)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if choice.transportType != "tcp" {
		t.Errorf("transportType = %q, want the flag value tcp", choice.transportType)
	}
	if choice.addr != "receiver:50100" {
		t.Errorf("addr = %q, want the flag value", choice.addr)
	}
	if choice.chunkSize != 8192 {
		t.Errorf("chunkSize = %d, want the flag value 8192", choice.chunkSize)
	}
}

func TestResolveSendChoice_RejectsNonPositiveChunkSize(t *testing.T) {
	c := newTestContext(t, []string{"--file", "/data/frame.cbf", "--chunk-size", "0"})
	if _, err := resolveSendChoice(c); err == nil {
		t.Fatal("expected error for zero chunk size")
	}
}
