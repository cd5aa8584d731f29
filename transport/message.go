package transport

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ardnew/softrng/pkg"
)

// Request is a control request on the wire.
type Request struct {
	ID   uint32 `cbor:"1,keyasint"`
	Cmd  uint32 `cbor:"2,keyasint"`
	Arg  []byte `cbor:"3,keyasint,omitempty"`
	Size uint32 `cbor:"4,keyasint,omitempty"`
}

// Response is the reply to a Request.
type Response struct {
	ID      uint32     `cbor:"1,keyasint"`
	Status  pkg.Status `cbor:"2,keyasint"`
	Payload []byte     `cbor:"3,keyasint,omitempty"`
}

// encMode encodes deterministically with integer keys.
var encMode cbor.EncMode

// decMode decodes leniently for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// EncodeRequest encodes a request message to CBOR bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	return encMode.Marshal(req)
}

// DecodeRequest decodes CBOR bytes into a request message.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := decMode.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response message to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	return encMode.Marshal(resp)
}

// DecodeResponse decodes CBOR bytes into a response message.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := decMode.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
