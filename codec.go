package kvsession

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns a session record into a single opaque blob and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// record is the persisted form of a session.
// Indefinite lives beside the user values so that expiration mode survives a
// reload without occupying a user-visible key.
type record struct {
	Values     map[string]any `msgpack:"v"`
	Indefinite bool           `msgpack:"i,omitempty"`
}

// MsgpackCodec encodes records as MessagePack.
// Map keys are sorted, so equal payloads produce equal blobs. Decoding is loose:
// signed integers come back as int64, floats as float64, arrays as []any and
// maps as map[string]any.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer PutBuffer(buf)

	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode session data: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	reader := readerPool.Get().(*bytes.Reader)
	reader.Reset(data)
	defer readerPool.Put(reader)

	dec := msgpack.NewDecoder(reader)
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return nil
}

// GobCodec encodes records with encoding/gob. It keeps exact Go types for the
// shapes registered in init, at the price of non-deterministic map ordering.
type GobCodec struct{}

func (GobCodec) Marshal(v any) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer PutBuffer(buf)

	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode session data: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	reader := readerPool.Get().(*bytes.Reader)
	reader.Reset(data)
	defer readerPool.Put(reader)

	if err := gob.NewDecoder(reader).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return nil
}

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]string{})
}

// encodeRecord and decodeRecord are the only places a session touches its codec.
func encodeRecord(c Codec, values map[string]any, indefinite bool) ([]byte, error) {
	return c.Marshal(record{Values: values, Indefinite: indefinite})
}

func decodeRecord(c Codec, data []byte) (record, error) {
	var r record
	if err := c.Unmarshal(data, &r); err != nil {
		return record{}, err
	}
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	return r, nil
}
