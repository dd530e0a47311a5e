package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// maxMessageSize bounds a single line-delimited message.
const maxMessageSize = 4 << 20

// ErrMalformedMessage wraps lines that are not valid JSON-RPC.
var ErrMalformedMessage = errors.New("malformed message")

// Transport handles MCP communication over stdio.
// Reads are expected from a single goroutine; writes may come from many.
type Transport struct {
	scanner *bufio.Scanner
	writer  io.Writer
	mu      sync.Mutex
}

// NewTransport creates a new line-delimited stdio transport
func NewTransport(r io.Reader, w io.Writer) *Transport {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	return &Transport{
		scanner: sc,
		writer:  w,
	}
}

// ReadMessage reads the next JSON-RPC message, skipping blank lines.
// It returns io.EOF once the input is exhausted.
func (t *Transport) ReadMessage() (*Request, error) {
	for t.scanner.Scan() {
		line := bytes.TrimSpace(t.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if req.Method == "" {
			return &req, fmt.Errorf("%w: missing method", ErrMalformedMessage)
		}
		return &req, nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// WriteResponse writes a JSON-RPC response as one line.
func (t *Transport) WriteResponse(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return t.writeLine(data)
}

func (t *Transport) writeLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintf(t.writer, "%s\n", data)
	return err
}
