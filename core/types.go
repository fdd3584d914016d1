package core

import "encoding/json"

// VectorRecord is a persisted embedding with optional metadata.
type VectorRecord struct {
	ID       string          `json:"id" msgpack:"id"`
	Vector   []float32       `json:"vector" msgpack:"vector"`
	Metadata json.RawMessage `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// QueryResult represents a single match returned by Query.
type QueryResult struct {
	ID       string          `json:"id"`
	Score    float32         `json:"score"` // Cosine similarity - higher values indicate closer vectors
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Entry is a raw key-value pair yielded by a KVStore scan.
type Entry struct {
	Key   []byte
	Value []byte
}
