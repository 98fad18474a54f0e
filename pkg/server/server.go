// Package server exposes a store over HTTP.
//
//	GET    /health     204
//	GET    /kv/{key}   200 value bytes, 404 if missing or deleted
//	PUT    /kv/{key}   body is the value, 200; 400 for an empty body since
//	                   an empty value is stored the same way as a delete
//	DELETE /kv/{key}   200, also for missing keys
//	GET    /stats      store counters as JSON, ?pretty=1 to indent
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kjk/common/log"
	"github.com/tidwall/pretty"

	"mythkv/pkg/store"
)

type Server struct {
	store      *store.Store
	httpServer *http.Server
	listener   net.Listener
	maxValue   int64
}

// New creates a server for s listening on addr
func New(s *store.Store, addr string, maxValueSize int) *Server {
	srv := &Server{
		store:    s,
		maxValue: int64(maxValueSize),
	}
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /kv/{key}", s.handleGet)
	mux.HandleFunc("PUT /kv/{key}", s.handlePut)
	mux.HandleFunc("DELETE /kv/{key}", s.handleDelete)
	mux.HandleFunc("GET /stats", s.handleStats)
	return logRequests(mux)
}

// Start listens and serves until Shutdown. Returns nil after Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	log.Logf("listening on http://%s\n", ln.Addr())
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, err := s.store.Get(r.Context(), []byte(key))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(v)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	body := r.Body
	if s.maxValue > 0 {
		body = http.MaxBytesReader(w, r.Body, s.maxValue)
	}
	value, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErr(w, r, store.ErrValueTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if _, err := s.store.Put(r.Context(), []byte(key), value); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, err := s.store.Delete(r.Context(), []byte(key)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	d, err := json.Marshal(s.store.Stats())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if r.URL.Query().Get("pretty") != "" {
		d = pretty.Pretty(d)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(d)
}

func statusForErr(err error) int {
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrEmptyKey),
		errors.Is(err, store.ErrEmptyValue),
		errors.Is(err, store.ErrKeyTooLarge),
		errors.Is(err, store.ErrValueTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForErr(err)
	if code >= 500 {
		log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	http.Error(w, err.Error(), code)
}
