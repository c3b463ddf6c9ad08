// Package codec provides the payload decoders a subscription can use to
// turn raw event payloads into typed values.
//
// [JSON] is the default. [CBOR] covers backends that push binary-encoded
// payloads over the text channel (base64 or raw, depending on transport).
package codec

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
}

type JSON struct{}

func (JSON) Unmarshal(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}

type CBOR struct{}

func (CBOR) Unmarshal(data []byte, dst any) error {
	return cbor.Unmarshal(data, dst)
}
