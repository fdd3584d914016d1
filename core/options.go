package core

import "log/slog"

// DefaultBatchConcurrency bounds the number of concurrent puts in AddBatch.
const DefaultBatchConcurrency = 8

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithCodec sets the record codec. JSON is used by default.
func WithCodec(codec Codec) Option {
	return func(s *VectorStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(s *VectorStore) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithBatchConcurrency sets how many puts AddBatch may have in flight.
func WithBatchConcurrency(n int) Option {
	return func(s *VectorStore) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}
