package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
)

// StdioTransport serves newline-delimited JSON-RPC frames over a duplex
// byte stream, one frame per line. Stdout carries frames only; all logging
// goes to stderr. Each request runs in its own goroutine so slow calls do
// not block the read loop.
type StdioTransport struct {
	Dispatcher *Dispatcher
	In         io.Reader
	Out        io.Writer

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewStdioTransport(d *Dispatcher) *StdioTransport {
	return &StdioTransport{Dispatcher: d, In: os.Stdin, Out: os.Stdout}
}

// Run reads frames until the input closes or ctx is cancelled. The local
// pipe is the trusted path: the adapter presents the server's own secret
// as credential, so the auth rules stay uniform across transports.
func (t *StdioTransport) Run(ctx context.Context) error {
	connID := uuid.NewString()
	slog.Info("stdio transport started", "conn_id", connID)

	scanner := bufio.NewScanner(t.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer across Scan calls.
		frame := make([]byte, len(line))
		copy(frame, line)

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			resp := t.Dispatcher.HandleRaw(ctx, frame, t.Dispatcher.Auth.Secret)
			if resp == nil {
				return
			}
			if err := t.writeFrame(resp); err != nil {
				slog.Error("stdio write failed", "conn_id", connID, "error", err)
			}
		}()
	}

	t.wg.Wait()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio read: %w", err)
	}
	slog.Info("stdio transport stopped", "conn_id", connID)
	return nil
}

func (t *StdioTransport) writeFrame(resp *jsonrpcResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.Out.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
