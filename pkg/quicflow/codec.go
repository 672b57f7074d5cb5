package quicflow

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
)

// Codec turns elements into payload bytes before the sink frames them onto
// the stream. It is supposed to return an error only when a final error is
// encountered.
type Codec[T any] interface {
	Marshal(elem T) ([]byte, error)
}

// BytesCodec passes raw buffers through untouched. The caller keeps
// ownership of the buffer until `Write` returns.
type BytesCodec struct{}

func (BytesCodec) Marshal(elem []byte) ([]byte, error) {
	return elem, nil
}

type JSONCodec[T any] struct{}

func (JSONCodec[T]) Marshal(elem T) ([]byte, error) {
	return json.Marshal(elem)
}

type ProtoCodec[Msg proto.Message] struct{}

func (ProtoCodec[Msg]) Marshal(elem Msg) ([]byte, error) {
	return proto.Marshal(elem)
}
