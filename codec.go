package kvcache

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec is the default Codec, serializing values with
// github.com/vmihailenco/msgpack/v5. Most Go types work out of the box:
// primitives, structs (exported fields), maps, slices, pointers, and types
// implementing msgpack.CustomEncoder/CustomDecoder. Functions, channels,
// and complex numbers cannot be encoded.
type MsgpackCodec struct{}

var _ Codec = MsgpackCodec{}

func (MsgpackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackCodec) Decode(data []byte, out any) error {
	return msgpack.Unmarshal(data, out)
}
