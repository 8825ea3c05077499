// Package streaming holds wire-framing helpers shared by provider drivers
// (SSE, newline-delimited JSON) and the client-facing SSE forwarder used by
// cmd/gateway.
package streaming

import (
	"bufio"
	"bytes"
	"io"
)

const (
	// DefaultScanBufferSize bounds the initial bufio.Scanner buffer; lines
	// longer than this grow the buffer up to ScanMaxLineSize.
	DefaultScanBufferSize = 4096
	// ScanMaxLineSize caps a single SSE/NDJSON line to guard against a
	// misbehaving upstream streaming an unbounded line.
	ScanMaxLineSize = 1024 * 1024

	sseDataPrefix = "data: "
	sseDone       = "[DONE]"
)

// ScanSSE reads Server-Sent Events frames from r and invokes onData for
// each non-empty "data: " payload, in arrival order. It stops at a
// "data: [DONE]" sentinel or EOF, whichever comes first.
func ScanSSE(r io.Reader, onData func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, DefaultScanBufferSize), ScanMaxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || bytes.HasPrefix(line, []byte("event:")) || bytes.HasPrefix(line, []byte(":")) {
			continue
		}
		if !bytes.HasPrefix(line, []byte(sseDataPrefix)) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte(sseDataPrefix))
		if bytes.Equal(data, []byte(sseDone)) {
			return nil
		}
		if err := onData(data); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ScanNDJSON reads newline-delimited JSON objects from r and invokes onLine
// for each non-empty line, in arrival order.
func ScanNDJSON(r io.Reader, onLine func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, DefaultScanBufferSize), ScanMaxLineSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := onLine(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
