// Package server exposes the editor-facing HTTP API. Handlers translate
// boundary JSON into orchestrator requests; invalid input is the only
// client-visible failure, everything else degrades inside the pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/codelens-ai/codelens/pkg/config"
	"github.com/codelens-ai/codelens/pkg/models"
	"github.com/codelens-ai/codelens/pkg/orchestrator"
	"github.com/codelens-ai/codelens/pkg/prompt"
	"github.com/codelens-ai/codelens/pkg/tracker"
)

// Server is the codelens HTTP API server.
type Server struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	tracker tracker.Tracker
	mux     *http.ServeMux
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, o *orchestrator.Orchestrator, t tracker.Tracker) *Server {
	s := &Server{
		cfg:     cfg,
		orch:    o,
		tracker: t,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/ai/analyze-code", s.codeHandler(models.KindAnalyze))
	s.mux.HandleFunc("/api/ai/generate-tests", s.codeHandler(models.KindGenerateTests))
	s.mux.HandleFunc("/api/ai/security-scan", s.codeHandler(models.KindSecurityScan))
	s.mux.HandleFunc("/api/ai/optimize-code", s.codeHandler(models.KindOptimize))
	s.mux.HandleFunc("/api/ai/chat", s.handleChat)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the API server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("codelens listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type codeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Context  string `json:"context"`
}

type chatRequest struct {
	Message     string `json:"message"`
	CodeContext string `json:"code_context"`
}

// chatResponse adds the timestamp field editors expect on chat replies.
type chatResponse struct {
	*models.AIResponse
	Timestamp string `json:"timestamp"`
}

func (s *Server) codeHandler(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var body codeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		r.Body.Close()

		req := models.AIRequest{
			Kind:      kind,
			Code:      body.Code,
			Language:  body.Language,
			Context:   body.Context,
			ClientKey: extractClientKey(r),
		}

		resp, err := s.orch.Handle(r.Context(), req)
		if err != nil {
			if errors.Is(err, prompt.ErrInvalidRequest) {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("%s handler error: %v", kind, err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeResponse(w, resp, resp)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	r.Body.Close()

	clientKey := extractClientKey(r)
	req := models.AIRequest{
		Kind:      models.KindChat,
		Message:   body.Message,
		Context:   body.CodeContext,
		ClientKey: clientKey,
		SessionID: s.resolveSessionID(r, clientKey),
	}

	if req.SessionID != "" {
		w.Header().Set("X-Codelens-Session", req.SessionID)
	}

	resp, err := s.orch.Handle(r.Context(), req)
	if err != nil {
		if errors.Is(err, prompt.ErrInvalidRequest) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("chat handler error: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeResponse(w, resp, chatResponse{
		AIResponse: resp,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":              "ok",
		"upstream_configured": s.cfg.Upstream.APIKey != "",
	})
}

// resolveSessionID groups chat requests into conversations, either by an
// explicit session header or by inactivity gap.
func (s *Server) resolveSessionID(r *http.Request, clientKey string) string {
	if s.tracker == nil || clientKey == "" {
		return ""
	}
	explicit := r.Header.Get("X-Codelens-Session")
	sid, err := s.tracker.ResolveSession(r.Context(), clientKey, explicit, s.cfg.Session.GapTimeout)
	if err != nil {
		log.Printf("session resolve error: %v", err)
		return ""
	}
	return sid
}

func writeResponse(w http.ResponseWriter, resp *models.AIResponse, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Codelens-Source", string(resp.Source))
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func extractClientKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const bearer = "Bearer "
	if len(auth) > len(bearer) && auth[:len(bearer)] == bearer {
		return auth[len(bearer):]
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"codelens_error","code":%d}}`, message, code)
}
