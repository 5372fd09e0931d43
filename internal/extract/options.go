package extract

import (
	"go.uber.org/zap"

	"github.com/tuannm99/novaextract/internal/metrics"
	"github.com/tuannm99/novaextract/internal/storage"
)

type options struct {
	logger         *zap.Logger
	metrics        *metrics.Metrics
	maxStringBytes int
	compression    storage.Compression
	compressionSet bool
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMaxStringBytes bounds the encoded size of string and spatial values.
func WithMaxStringBytes(n int) Option {
	return func(o *options) { o.maxStringBytes = n }
}

// WithCompression sets how row data is written on flush. Without it an
// existing file keeps the compression it was written with.
func WithCompression(c storage.Compression) Option {
	return func(o *options) {
		o.compression = c
		o.compressionSet = true
	}
}
