package mcp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// sseKeepalive is the interval between comment frames that keep
// intermediaries from timing out an idle stream.
const sseKeepalive = 30 * time.Second

// SSEHandler is the push-stream binding: it authenticates the request,
// emits one handshake event, then holds the stream open until the client
// disconnects.
type SSEHandler struct {
	Dispatcher *Dispatcher
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Dispatcher.Auth.Allow(ExtractCredential(r.Header)) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized: invalid or missing API key"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connID := uuid.NewString()
	slog.Info("sse client connected", "conn_id", connID, "remote_addr", r.RemoteAddr)

	fmt.Fprint(w, "retry: 10000\n")
	fmt.Fprint(w, `data: {"jsonrpc":"2.0","method":"notifications/initialized","params":{}}`+"\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Info("sse client disconnected", "conn_id", connID)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
