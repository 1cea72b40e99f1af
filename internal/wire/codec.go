// Package wire implements the server's request/response framing.
//
// A request is a UTF-8 JSON document followed by the four-byte sentinel
// 'E','O','T',0x00. A response is JSON only; the connection close signals
// end-of-response. Grounded on the raw-TCP read/accumulate loop style seen
// in the retrieved pack's hand-rolled binary protocol handlers (there is no
// framing helper in the teacher repo itself, since it speaks WebSocket,
// which frames messages for you).
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Sentinel terminates a request body on the wire.
var Sentinel = [4]byte{'E', 'O', 'T', 0x00}

// ErrClientDisconnect is returned by ReadRequest when the connection closed
// before any bytes were read. No response should be sent in this case.
var ErrClientDisconnect = errors.New("wire: client disconnected before sending a request")

// RequestSizeExceededError is returned when the accumulated request body
// exceeds maxSize before the sentinel arrives.
type RequestSizeExceededError struct {
	MaxSize int
}

func (e *RequestSizeExceededError) Error() string {
	return fmt.Sprintf("request exceeds maximum size of %d bytes", e.MaxSize)
}

// DecodeError is returned when the framed bytes are not valid JSON.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("malformed request: %v", e.Cause) }
func (e *DecodeError) Unwrap() error { return e.Cause }

// ReadRequest accumulates bytes from r, chunk-by-chunk of bufferSize bytes,
// until the sentinel is seen, then strips it and JSON-decodes the request
// into a map. It enforces maxSize against the body excluding the sentinel.
func ReadRequest(r io.Reader, bufferSize, maxSize int) (map[string]interface{}, error) {
	if bufferSize <= 0 {
		bufferSize = 4096
	}

	var buf bytes.Buffer
	chunk := make([]byte, bufferSize)
	totalRead := 0

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			totalRead += n
			buf.Write(chunk[:n])

			if idx := indexSentinel(buf.Bytes()); idx >= 0 {
				body := buf.Bytes()[:idx]
				if len(body) > maxSize {
					return nil, &RequestSizeExceededError{MaxSize: maxSize}
				}
				return decode(body)
			}

			if buf.Len() > maxSize+len(Sentinel) {
				return nil, &RequestSizeExceededError{MaxSize: maxSize}
			}
		}

		if err != nil {
			if err == io.EOF {
				if totalRead == 0 {
					return nil, ErrClientDisconnect
				}
				// Connection closed mid-request without ever sending the
				// sentinel: treat whatever arrived as the final decode
				// attempt so a well-formed-but-unterminated request from a
				// client that half-closes isn't silently dropped.
				if idx := indexSentinel(buf.Bytes()); idx >= 0 {
					return decode(buf.Bytes()[:idx])
				}
				return decode(buf.Bytes())
			}
			return nil, err
		}
	}
}

func decode(body []byte) (map[string]interface{}, error) {
	var req map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	return req, nil
}

func indexSentinel(b []byte) int {
	return bytes.Index(b, Sentinel[:])
}

// WriteResponse JSON-encodes resp and writes it to w. No sentinel is
// appended on the response path; the caller closes the connection
// afterwards to signal completion.
func WriteResponse(w io.Writer, resp map[string]interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}

// EncodeRequest is the client-side counterpart used by tests: it marshals
// req and appends the sentinel, producing exactly the bytes ReadRequest
// expects.
func EncodeRequest(req map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return append(body, Sentinel[:]...), nil
}
