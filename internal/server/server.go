// Package server exposes the detection pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/framehound/framehound/internal/config"
	"github.com/framehound/framehound/internal/intent"
	"github.com/framehound/framehound/internal/match"
	"github.com/framehound/framehound/internal/pipeline"
)

// maxUploadBytes bounds the multipart form held in memory before
// spilling to disk.
const maxUploadBytes = 32 << 20

// Server routes video processing and intent requests to the pipeline.
type Server struct {
	logger   zerolog.Logger
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	parser   *intent.Parser
}

// New wires the HTTP layer around an assembled pipeline.
func New(logger zerolog.Logger, cfg *config.Config, p *pipeline.Pipeline, parser *intent.Parser) *Server {
	return &Server{
		logger:   logger.With().Str("component", "server").Logger(),
		cfg:      cfg,
		pipeline: p,
		parser:   parser,
	}
}

// ServeMux builds the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/process-video", s.handleProcessVideo)
	mux.HandleFunc("/api/intent", s.handleIntent)
	return mux
}

// Handler is the full middleware stack around the mux.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.ServeMux())
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "video/") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported content type %q, expected a video file", ct))
		return
	}

	params, err := s.paramsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpPath, err := saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist upload")
		writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			s.logger.Warn().Err(err).Str("path", tmpPath).Msg("failed to remove temp file")
		}
	}()

	s.logger.Info().
		Str("path", tmpPath).
		Str("target", params.TargetObject).
		Float64("frame_interval", params.FrameIntervalSeconds).
		Float64("min_confidence", params.MinConfidence).
		Msg("saved uploaded video")

	result, err := s.pipeline.Run(r.Context(), tmpPath, params)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*pipeline.Result
	}{Success: true, Result: result})
}

// paramsFromForm merges form fields with configured defaults. The
// target text runs through the intent parser so color-qualified phrases
// like "red car" become color queries.
func (s *Server) paramsFromForm(r *http.Request) (pipeline.Params, error) {
	params := pipeline.Params{
		FrameIntervalSeconds: s.cfg.Pipeline.FrameIntervalSeconds,
		MinConfidence:        s.cfg.Pipeline.MinConfidence,
	}

	if v := r.FormValue("frame_interval_seconds"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, fmt.Errorf("invalid frame_interval_seconds %q", v)
		}
		params.FrameIntervalSeconds = f
	}
	if v := r.FormValue("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, fmt.Errorf("invalid min_confidence %q", v)
		}
		params.MinConfidence = f
	}
	if v := r.FormValue("max_frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return params, fmt.Errorf("invalid max_frames %q", v)
		}
		params.MaxFrames = n
	}

	if target := strings.TrimSpace(r.FormValue("target_object")); target != "" {
		params.TargetObject = target
		params.Queries = queriesForTarget(r.Context(), s.parser, target)
	}
	return params, nil
}

// queriesForTarget turns free target text into match queries, treating
// the whole text as a plain class name when parsing yields nothing.
func queriesForTarget(ctx context.Context, parser *intent.Parser, target string) []match.Query {
	res := parser.Parse(ctx, target)
	if len(res.Pairs) > 0 {
		return res.Pairs
	}
	if len(res.Targets) > 0 {
		queries := make([]match.Query, 0, len(res.Targets))
		for _, obj := range res.Targets {
			queries = append(queries, match.Query{Object: obj})
		}
		return queries
	}
	return []match.Query{{Object: strings.ToLower(target)}}
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	writeJSON(w, http.StatusOK, s.parser.Parse(r.Context(), req.Query))
}

// writePipelineError maps error kinds to HTTP statuses.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing sensible to write.
		return
	}

	status := http.StatusInternalServerError
	switch pipeline.KindOf(err) {
	case pipeline.KindInput:
		status = http.StatusBadRequest
	case pipeline.KindNotFound:
		status = http.StatusNotFound
	}
	s.logger.Error().Err(err).Int("status", status).Msg("processing failed")
	writeError(w, status, err.Error())
}

// corsMiddleware applies the configured allowed origins to every route.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(s.cfg.Server.CORSOrigins))
	for _, origin := range s.cfg.Server.CORSOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// saveUpload writes the uploaded stream to a temp file, keeping the
// original extension so downstream tools can sniff the container.
func saveUpload(file multipart.File, filename string) (string, error) {
	suffix := filepath.Ext(filename)
	if suffix == "" {
		suffix = ".mp4"
	}

	tmp, err := os.CreateTemp("", "framehound-*"+suffix)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
