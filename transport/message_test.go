package transport

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softrng/driver"
	"github.com/ardnew/softrng/pkg"
)

func TestRequestKeys(t *testing.T) {
	data, err := EncodeRequest(&Request{ID: 7, Cmd: uint32(driver.CmdSeed), Arg: []byte{1, 2, 3, 4}})
	require.NoError(t, err)

	var m map[uint64]any
	require.NoError(t, cbor.Unmarshal(data, &m))
	assert.Equal(t, map[uint64]any{
		1: uint64(7),
		2: uint64(0x40047101),
		3: []byte{1, 2, 3, 4},
	}, m, "size omitted when zero")

	req, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, &Request{ID: 7, Cmd: 0x40047101, Arg: []byte{1, 2, 3, 4}}, req)
}

func TestResponseKeys(t *testing.T) {
	data, err := EncodeResponse(&Response{ID: 9, Status: pkg.StatusNotReady})
	require.NoError(t, err)

	var m map[uint64]any
	require.NoError(t, cbor.Unmarshal(data, &m))
	assert.Equal(t, map[uint64]any{1: uint64(9), 2: uint64(19)}, m)

	resp, err := DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, pkg.StatusNotReady, resp.Status)
	assert.Nil(t, resp.Payload)
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	data, err := cbor.Marshal(map[uint64]any{1: 3, 2: uint32(driver.CmdRand32), 4: 4, 99: "future"})
	require.NoError(t, err)

	req, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), req.ID)
	assert.Equal(t, uint32(4), req.Size)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := DecodeRequest([]byte{0xff, 0x00})
	assert.Error(t, err)
	_, err = DecodeResponse([]byte{0xa1})
	assert.Error(t, err)
}
