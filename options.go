package eventgo

import (
	"log/slog"

	"github.com/hupe1980/eventgo/accountant"
	"github.com/hupe1980/eventgo/synopsis"
)

// Options configures a Store.
type Options struct {
	// PartitionCapacity is the row count at which an active partition
	// seals.
	PartitionCapacity uint64
	// MaxSliceSize is the maximum rows per table slice during ingest.
	MaxSliceSize int
	// IngestBatch is the maximum rows pulled per reader invocation.
	IngestBatch int
	// QueryParallelism bounds concurrent partition lookups per query.
	QueryParallelism int
	// Synopsis tunes per-column synopses.
	Synopsis synopsis.Options
	// Logger receives structured log output.
	Logger *slog.Logger
	// Metrics receives counter samples, best-effort.
	Metrics *accountant.Accountant
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		PartitionCapacity: 1 << 20,
		MaxSliceSize:      1 << 16,
		IngestBatch:       1 << 20,
		QueryParallelism:  4,
		Synopsis:          synopsis.DefaultOptions(),
	}
}

// Option mutates Options.
type Option func(*Options)

// WithPartitionCapacity sets the seal threshold in rows.
func WithPartitionCapacity(rows uint64) Option {
	return func(o *Options) { o.PartitionCapacity = rows }
}

// WithMaxSliceSize caps rows per table slice.
func WithMaxSliceSize(rows int) Option {
	return func(o *Options) { o.MaxSliceSize = rows }
}

// WithQueryParallelism bounds concurrent partition lookups per query.
func WithQueryParallelism(n int) Option {
	return func(o *Options) { o.QueryParallelism = n }
}

// WithSynopsisOptions tunes per-column synopses.
func WithSynopsisOptions(opts synopsis.Options) Option {
	return func(o *Options) { o.Synopsis = opts }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

// WithMetrics sets the accountant receiving counter samples.
func WithMetrics(a *accountant.Accountant) Option {
	return func(o *Options) { o.Metrics = a }
}
