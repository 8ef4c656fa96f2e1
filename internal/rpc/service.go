package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/pkg/jsonrpc"
)

// Service serves a Registry over a single POST endpoint at "/", matching
// the JSON-RPC 2.0 transport contract in spec.md.
type Service struct {
	registry      *Registry
	logger        zerolog.Logger
	permissiveCORS bool
}

func NewService(registry *Registry, logger zerolog.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// WithPermissiveCORS opts into a permissive CORS policy, mirroring the
// source's CorsLayer::permissive() — off by default.
func (s *Service) WithPermissiveCORS() *Service {
	s.permissiveCORS = true
	return s
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)

	if s.permissiveCORS {
		return cors.AllowAll().Handler(mux)
	}
	return mux
}

func (s *Service) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeResponse(w, jsonrpc.NewError(nil, jsonrpc.CodeParseError, "invalid JSON"))
		return
	}

	// Detect batch (array) vs single request by sniffing the first
	// non-whitespace byte.
	if isArray(raw) {
		var reqs []jsonrpc.Request
		if err := json.Unmarshal(raw, &reqs); err != nil {
			s.writeResponse(w, jsonrpc.NewError(nil, jsonrpc.CodeParseError, "invalid batch"))
			return
		}
		responses := s.dispatchBatch(r.Context(), reqs)
		s.writeJSON(w, responses)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeResponse(w, jsonrpc.NewError(nil, jsonrpc.CodeParseError, "invalid request"))
		return
	}
	s.writeResponse(w, s.dispatchOne(r.Context(), req))
}

// dispatchBatch runs each element concurrently and preserves input
// order in the output slice.
func (s *Service) dispatchBatch(ctx context.Context, reqs []jsonrpc.Request) []jsonrpc.Response {
	responses := make([]jsonrpc.Response, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req jsonrpc.Request) {
			defer wg.Done()
			responses[i] = s.dispatchOne(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return responses
}

func (s *Service) dispatchOne(ctx context.Context, req jsonrpc.Request) jsonrpc.Response {
	result, err := s.registry.Dispatch(ctx, req.Method, req.Params)
	if err != nil {
		return s.errorResponse(req.ID, err)
	}
	resp, err := jsonrpc.NewResult(req.ID, result)
	if err != nil {
		return s.errorResponse(req.ID, mjerr.Internal(err, "encode result"))
	}
	return resp
}

func (s *Service) errorResponse(id json.RawMessage, err error) jsonrpc.Response {
	mjErr, ok := mjerr.As(err)
	if !ok {
		s.logger.Error().Err(err).Msg("unmapped error at RPC boundary")
		return jsonrpc.NewError(id, jsonrpc.CodeInternalError, err.Error())
	}

	switch mjErr.Kind {
	case mjerr.KindBadParams:
		return jsonrpc.NewError(id, jsonrpc.CodeInvalidParams, mjErr.Error())
	case mjerr.KindMethodNotFound:
		return jsonrpc.NewError(id, jsonrpc.CodeMethodNotFound, mjErr.Error())
	default:
		s.logger.Error().Err(mjErr).Msg("internal error at RPC boundary")
		return jsonrpc.NewError(id, jsonrpc.CodeInternalError, mjErr.Error())
	}
}

func (s *Service) writeResponse(w http.ResponseWriter, resp jsonrpc.Response) {
	s.writeJSON(w, resp)
}

func (s *Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to write RPC response")
	}
}

func isArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
