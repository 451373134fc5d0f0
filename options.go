package rowdb

import (
	"log/slog"

	"github.com/hupe1980/rowdb/blobstore"
	"github.com/hupe1980/rowdb/codec"
	"github.com/hupe1980/rowdb/persistence"
)

// Compression selects the framing applied to saved files.
type Compression = persistence.Compression

const (
	// CompressionNone writes the plain file format.
	CompressionNone = persistence.CompressionNone
	// CompressionLZ4 wraps saved files in an LZ4 frame.
	CompressionLZ4 = persistence.CompressionLZ4
	// CompressionZSTD wraps saved files in a Zstandard frame.
	CompressionZSTD = persistence.CompressionZSTD
)

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	store            blobstore.BlobStore
	compression      Compression
	memoryLimit      int64
	ioLimit          int64
}

// Option configures New, Open, Read and Decode.
type Option func(*options)

// WithCodec configures the codec used by Export.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithBlobStore configures where Open and Save find database files.
// The default resolves names as local file paths.
//
// Example with S3:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("tables/"))
//	db, _ := rowdb.Open(ctx, "people.rdb", rowdb.WithBlobStore(store))
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCompression wraps saved files in an LZ4 or Zstandard frame. Loading
// detects the framing automatically, so this only affects writes.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMemoryLimit caps the bytes held by the row table and string pool.
// Growth past the limit fails with ErrMemoryLimitExceeded. Zero means
// unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit caps load and save throughput in bytes per second.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rowdb.BasicMetricsCollector{}
//	db, _ := rowdb.New(types, rowdb.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Rows created: %d\n", stats.CreateRowCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := rowdb.NewJSONLogger(slog.LevelInfo)
//	db, _ := rowdb.Open(ctx, "people.rdb", rowdb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.store == nil {
		o.store = blobstore.NewLocalStore("")
	}
	return o
}
