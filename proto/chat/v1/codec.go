// Package v1 holds the chat.v1.ChatService contract: request/response types,
// the service descriptor and a typed client. Messages travel as JSON over
// gRPC using the codec registered here under the "json" content-subtype.
package v1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content-subtype clients must select with
// grpc.CallContentSubtype(Name).
const Name = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (codec) Name() string                       { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}
