// Package rpc implements the inbound JSON-RPC dispatcher (C5): exact
// method match, else namespace-prefix fallback, else MethodNotFound.
package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/0xkanth/mojave-sequencer/internal/mjerr"
	"github.com/0xkanth/mojave-sequencer/pkg/jsonrpc"
)

// Namespace groups methods sharing a "ns_method" prefix.
type Namespace string

const (
	NamespaceMojave Namespace = "moj"
	NamespaceEth    Namespace = "eth"
)

// HandlerFunc decodes params, executes the request, and returns a value
// to be JSON-encoded as the result.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Registry is a dynamic method -> handler map plus a per-namespace
// fallback map.
type Registry struct {
	methods   map[string]HandlerFunc
	fallbacks map[Namespace]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		methods:   make(map[string]HandlerFunc),
		fallbacks: make(map[Namespace]HandlerFunc),
	}
}

// Register binds an exact method name to a handler.
func (r *Registry) Register(method string, h HandlerFunc) {
	r.methods[method] = h
}

// WithFallback binds a namespace-wide fallback handler, invoked when no
// exact method match exists for an "ns_method" call.
func (r *Registry) WithFallback(ns Namespace, h HandlerFunc) *Registry {
	r.fallbacks[ns] = h
	return r
}

// Dispatch resolves method to a handler: exact match wins; otherwise the
// namespace prefix ("ns_method") is looked up in the fallback map;
// otherwise mjerr.MethodNotFound.
func (r *Registry) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if h, ok := r.methods[method]; ok {
		return h(ctx, params)
	}

	ns, _, ok := splitNamespace(method)
	if ok {
		if h, ok := r.fallbacks[ns]; ok {
			return h(ctx, params)
		}
	}

	return nil, mjerr.MethodNotFound(method)
}

func splitNamespace(method string) (Namespace, string, bool) {
	idx := strings.IndexByte(method, '_')
	if idx <= 0 {
		return "", "", false
	}
	return Namespace(method[:idx]), method[idx+1:], true
}
