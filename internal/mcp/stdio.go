// ABOUTME: Line-delimited JSON-RPC transport over a reader and writer.
// ABOUTME: One response line per non-blank request line.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ServeStdio reads one JSON-RPC request per line from r and writes one
// response per line to w until r is exhausted or ctx is cancelled.
func (d *Dispatcher) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxRequestBodySize)

	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)

	d.logger.Info("serving JSON-RPC on stdio")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// Encode appends the newline
		if err := enc.Encode(d.Dispatch(ctx, line)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flushing response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}
