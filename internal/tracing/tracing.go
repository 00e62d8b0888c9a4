// Package tracing wraps the New Relic agent behind an enabled flag. Every
// method tolerates a disabled tracer and nil transactions, so callers
// instrument unconditionally and configuration decides whether anything is
// reported.
package tracing

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config holds the New Relic settings.
type Config struct {
	Enabled       bool
	AppName       string
	LicenseKey    string
	LogForwarding bool
}

// Tracer is a nil-safe wrapper around one New Relic application.
type Tracer struct {
	app     *newrelic.Application
	enabled bool
}

// NewTracer connects to New Relic, or returns a disabled tracer when tracing
// is off or no license key is configured.
func NewTracer(cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		log.Info().Msg("New Relic disabled, tracing is a no-op")
		return &Tracer{}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogForwarding),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &Tracer{app: app, enabled: true}, nil
}

// Enabled reports whether anything is reported to New Relic.
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// StartTransaction starts a transaction, or returns nil when disabled.
func (t *Tracer) StartTransaction(name string) *newrelic.Transaction {
	if !t.Enabled() {
		return nil
	}

	return t.app.StartTransaction(name)
}

// EndTransaction ends a transaction. Nil transactions are ignored.
func (t *Tracer) EndTransaction(txn *newrelic.Transaction) {
	if txn != nil {
		txn.End()
	}
}

// StartSegment starts a segment inside a transaction. With a nil transaction
// the returned segment is inert and still safe to End.
func (t *Tracer) StartSegment(txn *newrelic.Transaction, name string) *newrelic.Segment {
	if txn == nil {
		return &newrelic.Segment{}
	}

	return txn.StartSegment(name)
}

// RecordError attaches an error to a transaction.
func (t *Tracer) RecordError(txn *newrelic.Transaction, err error) {
	if txn == nil || err == nil {
		return
	}

	txn.NoticeError(err)
}

// AddAttribute attaches a key/value pair to a transaction.
func (t *Tracer) AddAttribute(txn *newrelic.Transaction, key string, value interface{}) {
	if txn == nil {
		return
	}

	txn.AddAttribute(key, value)
}

// WithContext stores the transaction in the context, so downstream code and
// the contextual logger can correlate with it.
func (t *Tracer) WithContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}

	return newrelic.NewContext(ctx, txn)
}

// SegmentFromContext starts a segment on the transaction carried by ctx and
// returns its End function. Without a transaction the returned function does
// nothing, so callers instrument unconditionally.
func SegmentFromContext(ctx context.Context, name string) func() {
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return func() {}
	}

	return txn.StartSegment(name).End
}

// Shutdown flushes pending data and blocks up to timeout.
func (t *Tracer) Shutdown(timeout time.Duration) {
	if !t.Enabled() {
		return
	}

	t.app.Shutdown(timeout)
}
