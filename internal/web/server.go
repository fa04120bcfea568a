// Package web serves the browser front-end: one page, one websocket per tab,
// and a form endpoint for choosing the document.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"DocChat/internal/backend"
	"DocChat/internal/chatclient"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

//go:embed static/*
var staticFS embed.FS

// maxDocumentBytes bounds the multipart body accepted from the browser.
const maxDocumentBytes = 32 << 20

// tab is one connected browser page and the chat it owns.
type tab struct {
	client *chatclient.ChatClient
	dir    string
}

// Server owns the per-tab chat clients.
type Server struct {
	backend  chatclient.Backend
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	tabs map[string]*tab
}

// NewServer creates a server whose tabs all talk to b.
func NewServer(b chatclient.Backend, logger *slog.Logger) *Server {
	return &Server{
		backend: b,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		tabs: make(map[string]*tab),
	}
}

// Handler wires HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	static, _ := fs.Sub(staticFS, "static")
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	})
	r.Get("/ws", s.handleWebSocket)
	r.Post("/sessions/{sessionID}/file", s.handleSelectFile)

	return r
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("web UI listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) register(t *tab) string {
	id := t.client.Session().ID
	s.mu.Lock()
	s.tabs[id] = t
	s.mu.Unlock()
	return id
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	t, ok := s.tabs[id]
	delete(s.tabs, id)
	s.mu.Unlock()

	if ok {
		if err := os.RemoveAll(t.dir); err != nil {
			s.logger.Warn("failed to remove tab upload dir", "session_id", id, "error", err)
		}
	}
}

func (s *Server) lookup(id string) (*tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	return t, ok
}

// handleSelectFile stores the browser's chosen file for that tab. It does not
// upload: the page sends an "upload" frame for that.
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	t, ok := s.lookup(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	src, header, err := r.FormFile(backend.UploadField)
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer src.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		respondError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	path := filepath.Join(t.dir, name)
	if err := saveFile(path, src); err != nil {
		s.logger.Error("failed to store selected file", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	doc, err := t.client.SelectFile(path)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"name": doc.Name,
		"size": doc.Size,
	})
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return dst.Close()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
