package rpc

import (
	json "github.com/nikkolasg/hexjson"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype carried by every call.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec frames gRPC messages as JSON with hex byte strings, so the service
// needs no generated protobuf types.
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (codec) Name() string {
	return CodecName
}
