// Package transport carries RNG control requests over a Unix stream socket.
//
// Each message is a frame made of a 4-byte big-endian length followed by a
// CBOR map with integer keys:
//
//	Request:  {1: id, 2: cmd, 3: arg, 4: size}
//	Response: {1: id, 2: status, 3: payload}
//
// cmd is a driver.Command number. For seed requests arg holds the 4-byte
// value; for draws size is the caller's buffer length. status is a
// pkg.Status (errno-valued). A client has at most one request outstanding
// per connection; responses echo the request id.
package transport
