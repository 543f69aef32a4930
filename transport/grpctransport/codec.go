package grpctransport

import "encoding/json"

// codecName is the grpc/encoding.Codec.Name this package registers,
// selected via grpc.ForceServerCodec/grpc.ForceCodec rather than grpc-go's
// built-in "proto" codec, since the request/response types in
// grpctransport.go are plain structs rather than generated protobuf messages (see grpctransport.go's
// package doc).
const codecName = "channels-json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json, so SendRequest et al. need not implement proto.Message.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }
