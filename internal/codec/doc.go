// Package codec moves arbitrary byte buffers across channels that only carry text.
//
// A buffer is rendered as one two-digit hex token per byte, tokens joined by "/",
// and the stream closed by a single "*" sentinel token:
//   - []byte{1, 0, 255} encodes to "01/00/FF/*"
//   - an empty buffer encodes to "*"
//
// Decoding accepts upper and lower case digits and fails as a whole on any
// malformed token or a missing sentinel. It never returns a partial buffer.
package codec
