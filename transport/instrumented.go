package transport

import (
	"context"

	"github.com/halide-io/sluice/metrics"
	"github.com/halide-io/sluice/types"
)

// Instrumented wraps a Connector and records delivery metrics.
// Failure counters live here at the transport boundary; per-chunk
// payload accounting stays with the session, which knows payload sizes.
type Instrumented struct {
	inner     Connector
	collector *metrics.Collector
}

// NewInstrumented wraps a connector with metrics instrumentation.
func NewInstrumented(inner Connector, collector *metrics.Collector) *Instrumented {
	return &Instrumented{inner: inner, collector: collector}
}

// Open delegates to the inner connector and records failures.
func (c *Instrumented) Open(ctx context.Context, open *types.FileOpenFrame) error {
	err := c.inner.Open(ctx, open)
	if err != nil {
		c.collector.IncOpenFailure()
	} else {
		c.collector.IncFileOpened()
	}
	return err
}

// Send delegates to the inner connector and records failures.
func (c *Instrumented) Send(ctx context.Context, frame []byte) error {
	err := c.inner.Send(ctx, frame)
	if err != nil {
		c.collector.IncSendFailure()
	}
	return err
}

// Release delegates to the inner connector and records failures.
func (c *Instrumented) Release() error {
	err := c.inner.Release()
	if err != nil {
		c.collector.IncReleaseFailure()
	}
	return err
}

// Verify Instrumented implements Connector.
var _ Connector = (*Instrumented)(nil)
