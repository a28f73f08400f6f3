package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/inventa-dev/inventa/internal/store"
)

// Server binds the Dispatcher to HTTP: one JSON-RPC envelope per POST,
// plus the read-only operational endpoints and the legacy REST surface.
type Server struct {
	Dispatcher *Dispatcher
	mux        *http.ServeMux
}

func NewServer(d *Dispatcher) *Server {
	s := &Server{Dispatcher: d, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /mcp", s.handleRPC)
	s.mux.HandleFunc("POST /{$}", s.handleRPC)
	s.mux.Handle("GET /sse", &SSEHandler{Dispatcher: d})
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /test", s.handleTest)
	s.mux.HandleFunc("GET /api/test", s.handleTest)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/users", s.handleListUsers)
	s.mux.HandleFunc("POST /api/users", s.handleCreateUser)
	s.mux.HandleFunc("PUT /api/users/{id}", s.handleUpdateUser)
	s.mux.HandleFunc("DELETE /api/users/{id}", s.handleDeleteUser)
	s.mux.HandleFunc("GET /api/products", s.handleListProducts)
	s.mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	s.mux.HandleFunc("PUT /api/products/{id}", s.handleUpdateProduct)
	s.mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)
	return s
}

// --- response writer wrapper ---

type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
	rpcMethod   string
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush keeps the SSE stream working through the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

	h := rw.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, x-api-key, x-api-token, authorization")

	if r.Method == http.MethodOptions {
		rw.WriteHeader(http.StatusOK)
	} else {
		s.mux.ServeHTTP(rw, r)
	}

	duration := time.Since(start)

	if slog.Default().Enabled(r.Context(), slog.LevelDebug) {
		slog.Debug("http request detail",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", duration.Milliseconds(),
			"rpc_method", rw.rpcMethod,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
			"response_bytes", rw.bytes,
		)
	} else {
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", duration.Milliseconds(),
			"rpc_method", rw.rpcMethod,
		)
	}
}

// --- JSON-RPC endpoint ---

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if rw, ok := w.(*responseWriter); ok {
		var probe struct {
			Method string `json:"method"`
		}
		json.Unmarshal(body, &probe)
		rw.rpcMethod = probe.Method
	}

	resp := s.Dispatcher.HandleRaw(r.Context(), body, ExtractCredential(r.Header))
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	status := http.StatusOK
	if resp.Error != nil && resp.Error.Code == codeUnauthorized {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, resp)
}

// --- operational endpoints ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "API is working",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": "go",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Dispatcher.Store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// --- legacy REST surface ---

// authed gates the REST data endpoints with the same credential rules as
// the JSON-RPC path.
func (s *Server) authed(w http.ResponseWriter, r *http.Request) bool {
	if s.Dispatcher.Auth.Allow(ExtractCredential(r.Header)) {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized: invalid or missing API key"})
	return false
}

// restErr maps Store failures onto HTTP statuses. Same policy on every
// entry point: 400 validation, 404 not found, 409 constraint.
func restErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNoFields), errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConstraint):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "id must be an integer"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	users, err := s.Dispatcher.Store.ListUsers(r.Context())
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	var nu store.NewUser
	if !decodeBody(w, r, &nu) {
		return
	}
	user, err := s.Dispatcher.Store.CreateUser(r.Context(), nu)
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch store.UserPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	user, err := s.Dispatcher.Store.UpdateUser(r.Context(), id, patch)
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := s.Dispatcher.Store.DeleteUser(r.Context(), id)
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "deleted": true})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	products, err := s.Dispatcher.Store.ListProducts(r.Context())
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	var np store.NewProduct
	if !decodeBody(w, r, &np) {
		return
	}
	product, err := s.Dispatcher.Store.CreateProduct(r.Context(), np)
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch store.ProductPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	product, err := s.Dispatcher.Store.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if !s.authed(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := s.Dispatcher.Store.DeleteProduct(r.Context(), id)
	if err != nil {
		restErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product, "deleted": true})
}
