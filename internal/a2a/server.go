package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// AgentCardPath is where a server publishes its agent card.
const AgentCardPath = "/.well-known/agent-card.json"

// Handler executes incoming A2A requests.
type Handler interface {
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)
	HandleGetTask(ctx context.Context, id string) (*Task, error)
	HandleCancelTask(ctx context.Context, id string) (*Task, error)
}

// Server exposes a Handler over HTTP.
type Server struct {
	card    AgentCard
	handler Handler
	http    *http.Server
	addr    string
}

// NewServer returns a server for handler described by card.
func NewServer(card AgentCard, handler Handler) *Server {
	return &Server{card: card, handler: handler}
}

// Routes returns the HTTP handler serving the agent card and JSON-RPC
// endpoint. It is usable directly with httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+AgentCardPath, s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Start listens on addr and serves in the background. Listen errors are
// returned synchronously.
func (s *Server) Start(_ context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	s.http = &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WARNING: a2a server %s: %v", s.addr, err)
		}
	}()
	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string { return s.addr }

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, ErrCodeParse, "parse error: "+err.Error())
		return
	}

	var (
		result *Task
		err    error
	)
	switch req.Method {
	case MethodSendMessage:
		var params SendMessageRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
			return
		}
		result, err = s.handler.HandleSendMessage(r.Context(), params)
	case MethodGetTask, MethodCancelTask:
		var params TaskIDRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, ErrCodeInvalidParams, "invalid params: "+err.Error())
			return
		}
		if req.Method == MethodGetTask {
			result, err = s.handler.HandleGetTask(r.Context(), params.ID)
		} else {
			result, err = s.handler.HandleCancelTask(r.Context(), params.ID)
		}
	default:
		writeError(w, req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
		return
	}

	if err != nil {
		writeError(w, req.ID, errorCode(err), err.Error())
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, req.ID, ErrCodeInternal, "marshal result: "+err.Error())
		return
	}
	json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: data})
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return ErrCodeTaskNotFound
	case errors.Is(err, ErrTaskNotCancelable):
		return ErrCodeTaskNotCancelable
	default:
		return ErrCodeInternal
	}
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
