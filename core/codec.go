package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes records to the bytes stored in the key-value store.
// Decoding the output of Marshal must reproduce the same ID, vector values
// and metadata.
type Codec interface {
	Name() string
	Marshal(rec *VectorRecord) ([]byte, error)
	Unmarshal(data []byte, rec *VectorRecord) error
}

// Supported codec names
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// JSONCodec stores records as JSON documents. Metadata is embedded as a JSON
// string so its bytes come back exactly as given, whitespace and all.
type JSONCodec struct{}

// jsonRecord is the stored JSON form of a VectorRecord.
type jsonRecord struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata *string   `json:"metadata,omitempty"`
}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Marshal(rec *VectorRecord) ([]byte, error) {
	out := jsonRecord{ID: rec.ID, Vector: rec.Vector}
	if rec.Metadata != nil {
		meta := string(rec.Metadata)
		out.Metadata = &meta
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (JSONCodec) Unmarshal(data []byte, rec *VectorRecord) error {
	var in jsonRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*rec = VectorRecord{ID: in.ID, Vector: in.Vector}
	if in.Metadata != nil {
		rec.Metadata = json.RawMessage(*in.Metadata)
	}
	return nil
}

// MsgpackCodec stores records as MessagePack. Float32 components are kept
// as 4-byte floats, so it is considerably smaller than JSON for large vectors.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Marshal(rec *VectorRecord) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func (MsgpackCodec) Unmarshal(data []byte, rec *VectorRecord) error {
	return msgpack.Unmarshal(data, rec)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", name)
	}
}
