package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/halide-io/sluice/cli/config"
	"github.com/halide-io/sluice/ingest"
	"github.com/halide-io/sluice/iox"
	"github.com/halide-io/sluice/log"
	"github.com/halide-io/sluice/metrics"
	"github.com/halide-io/sluice/transport"
)

// Exit codes for send.
const (
	exitSuccess = 0
	exitUsage   = 1
	exitInit    = 2
	exitWrite   = 3
	exitClose   = 4
	exitStop    = 5
)

// DefaultChunkSize is the read size for each chunk when not overridden.
const DefaultChunkSize = 512 * 1024

// SendCommand returns the send command.
// This is the only command that transfers data.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Stream one file to the receiver in sequenced chunks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path to the file to send",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "file-id",
				Usage: "File identifier announced to the receiver (default: --file path)",
			},
			&cli.Int64Flag{
				Name:  "chunk-size",
				Usage: "Chunk size in bytes",
				Value: DefaultChunkSize,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to sluice.yaml config file",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Transport: tcp, ws, redis, or s3",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-call transport timeout (0 disables)",
			},
			// TCP flags
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Receiver address for tcp transport (host:port)",
			},
			// WebSocket / Redis flags
			&cli.StringFlag{
				Name:  "url",
				Usage: "Receiver URL for ws (ws://...) or redis (redis://...) transport",
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Pub/sub channel for redis transport",
			},
			// S3 flags
			&cli.StringFlag{
				Name:  "bucket",
				Usage: "Bucket for s3 transport",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Key prefix for s3 transport",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "AWS region for s3 transport (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Custom endpoint for S3-compatible providers",
			},
			&cli.BoolFlag{
				Name:  "s3-path-style",
				Usage: "Force path-style addressing for s3 transport",
			},
			// Logging flags
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file path (default: stderr)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the transfer summary",
			},
		},
		Action: sendAction,
	}
}

// sendChoice holds the merged flag and config file settings.
type sendChoice struct {
	filePath  string
	fileID    string
	chunkSize int64
	timeout   time.Duration

	transportType string
	addr          string
	url           string
	channel       string
	bucket        string
	prefix        string
	region        string
	endpoint      string
	s3PathStyle   bool

	logLevel string
	logFile  string
	logMaxMB int
	quiet    bool
}

func sendAction(c *cli.Context) error {
	choice, err := resolveSendChoice(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitUsage)
	}

	factory, err := buildFactory(choice)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid transport config: %v", err), exitUsage)
	}

	logger := log.NewLogger(log.Options{
		ClientID:  choice.fileID,
		Transport: choice.transportType,
		Level:     choice.logLevel,
		File:      choice.logFile,
		MaxSizeMB: choice.logMaxMB,
	})
	defer iox.DiscardErr(logger.Sync)

	collector := metrics.NewCollector(choice.transportType, choice.fileID)

	client, err := ingest.Init(factory,
		ingest.WithLogger(logger),
		ingest.WithMetrics(collector),
		ingest.WithSendTimeout(choice.timeout),
		ingest.WithChunkSize(choice.chunkSize),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("initialization failed: %v", err), exitInit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	start := time.Now()
	code, sendErr := transfer(ctx, client, choice)

	if sendErr != nil {
		return cli.Exit(fmt.Sprintf("send failed: %v", sendErr), code)
	}

	if !choice.quiet {
		printSendSummary(client.Metrics(), choice, time.Since(start))
	}
	return cli.Exit("", exitSuccess)
}

// transfer runs the open, read-loop, close, stop sequence and maps each
// failure onto its exit code. Stop always runs so the connector is
// released even when the transfer fails partway.
func transfer(ctx context.Context, client *ingest.Client, choice sendChoice) (int, error) {
	file, err := os.Open(choice.filePath)
	if err != nil {
		stopQuietly(ctx, client)
		return exitUsage, err
	}
	defer iox.DiscardClose(file)

	session, err := client.OpenFile(ctx, choice.fileID)
	if err != nil {
		stopQuietly(ctx, client)
		return exitInit, err
	}

	buf := make([]byte, choice.chunkSize)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			if err := session.Write(ctx, buf[:n]); err != nil {
				stopQuietly(ctx, client)
				return exitWrite, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			stopQuietly(ctx, client)
			return exitWrite, fmt.Errorf("read %s: %w", choice.filePath, readErr)
		}
	}

	if err := session.Close(ctx); err != nil {
		stopQuietly(ctx, client)
		return exitClose, err
	}

	if err := client.Stop(ctx); err != nil {
		return exitStop, err
	}
	return exitSuccess, nil
}

// stopQuietly releases the connector after a failure that is already
// being reported; a secondary stop error would only shadow it.
func stopQuietly(ctx context.Context, client *ingest.Client) {
	_ = client.Stop(ctx)
}

// resolveSendChoice merges flags with config file values.
// Flags always win; the config file supplies defaults.
func resolveSendChoice(c *cli.Context) (sendChoice, error) {
	choice := sendChoice{
		filePath:  c.String("file"),
		fileID:    c.String("file-id"),
		chunkSize: c.Int64("chunk-size"),
		timeout:   c.Duration("timeout"),

		transportType: c.String("transport"),
		addr:          c.String("addr"),
		url:           c.String("url"),
		channel:       c.String("channel"),
		bucket:        c.String("bucket"),
		prefix:        c.String("prefix"),
		region:        c.String("region"),
		endpoint:      c.String("endpoint"),
		s3PathStyle:   c.Bool("s3-path-style"),

		logLevel: c.String("log-level"),
		logFile:  c.String("log-file"),
		quiet:    c.Bool("quiet"),
	}

	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return sendChoice{}, err
		}
		applyConfig(&choice, c, cfg)
	}

	if choice.fileID == "" {
		choice.fileID = filepath.ToSlash(choice.filePath)
	}
	if choice.chunkSize <= 0 {
		return sendChoice{}, fmt.Errorf("chunk size must be positive, got %d", choice.chunkSize)
	}
	if choice.transportType == "" {
		choice.transportType = "tcp"
	}
	return choice, nil
}

// applyConfig fills unset flag values from the config file.
func applyConfig(choice *sendChoice, c *cli.Context, cfg *config.Config) {
	if !c.IsSet("transport") && cfg.Transport.Type != "" {
		choice.transportType = cfg.Transport.Type
	}
	if !c.IsSet("addr") && cfg.Transport.Addr != "" {
		choice.addr = cfg.Transport.Addr
	}
	if !c.IsSet("url") && cfg.Transport.URL != "" {
		choice.url = cfg.Transport.URL
	}
	if !c.IsSet("channel") && cfg.Transport.Channel != "" {
		choice.channel = cfg.Transport.Channel
	}
	if !c.IsSet("bucket") && cfg.Transport.Bucket != "" {
		choice.bucket = cfg.Transport.Bucket
	}
	if !c.IsSet("prefix") && cfg.Transport.Prefix != "" {
		choice.prefix = cfg.Transport.Prefix
	}
	if !c.IsSet("region") && cfg.Transport.Region != "" {
		choice.region = cfg.Transport.Region
	}
	if !c.IsSet("endpoint") && cfg.Transport.Endpoint != "" {
		choice.endpoint = cfg.Transport.Endpoint
	}
	if !c.IsSet("s3-path-style") && cfg.Transport.S3PathStyle {
		choice.s3PathStyle = true
	}
	if !c.IsSet("chunk-size") && cfg.ChunkSize > 0 {
		choice.chunkSize = cfg.ChunkSize
	}
	if !c.IsSet("timeout") && cfg.Timeout.Duration > 0 {
		choice.timeout = cfg.Timeout.Duration
	}
	if !c.IsSet("log-level") && cfg.Log.Level != "" {
		choice.logLevel = cfg.Log.Level
	}
	if !c.IsSet("log-file") && cfg.Log.File != "" {
		choice.logFile = cfg.Log.File
	}
	if cfg.Log.MaxSizeMB > 0 {
		choice.logMaxMB = cfg.Log.MaxSizeMB
	}
}

// buildFactory maps the transport choice onto a connector factory.
func buildFactory(choice sendChoice) (transport.Factory, error) {
	switch choice.transportType {
	case "tcp":
		if choice.addr == "" {
			return nil, fmt.Errorf("tcp transport requires --addr")
		}
		return transport.TCPFactory(transport.TCPConfig{
			Addr:         choice.addr,
			WriteTimeout: choice.timeout,
		}), nil

	case "ws":
		if choice.url == "" {
			return nil, fmt.Errorf("ws transport requires --url")
		}
		return transport.WSFactory(transport.WSConfig{
			URL:          choice.url,
			WriteTimeout: choice.timeout,
		}), nil

	case "redis":
		if choice.url == "" {
			return nil, fmt.Errorf("redis transport requires --url")
		}
		return transport.RedisFactory(transport.RedisConfig{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
		}), nil

	case "s3":
		if choice.bucket == "" {
			return nil, fmt.Errorf("s3 transport requires --bucket")
		}
		return transport.S3Factory(transport.S3Config{
			Bucket:       choice.bucket,
			Prefix:       choice.prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.s3PathStyle,
		}), nil

	default:
		return nil, fmt.Errorf("unknown transport: %s (must be tcp, ws, redis, or s3)", choice.transportType)
	}
}

func printSendSummary(snap metrics.Snapshot, choice sendChoice, duration time.Duration) {
	fmt.Printf("\nfile_id=%s, transport=%s, duration=%s\n",
		choice.fileID,
		choice.transportType,
		duration.Round(time.Millisecond),
	)
	fmt.Printf("chunks=%d, bytes=%d, send_failures=%d\n",
		snap.ChunksSent,
		snap.BytesSent,
		snap.SendFailures,
	)
}
