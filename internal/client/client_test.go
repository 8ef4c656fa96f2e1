package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0xkanth/mojave-sequencer/internal/client"
	"github.com/0xkanth/mojave-sequencer/pkg/jsonrpc"
)

func jsonRPCServer(t *testing.T, handler func(method string) (any, *jsonrpc.Error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method)
		var resp jsonrpc.Response
		if rpcErr != nil {
			resp = jsonrpc.NewError(req.ID, rpcErr.Code, rpcErr.Message)
		} else {
			var err error
			resp, err = jsonrpc.NewResult(req.ID, result)
			require.NoError(t, err)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestSequentialReturnsFirstSuccess(t *testing.T) {
	srv := jsonRPCServer(t, func(method string) (any, *jsonrpc.Error) {
		return "ok", nil
	})
	defer srv.Close()

	c := client.New(client.WithFullNodeURLs(srv.URL))
	var out string
	err := c.Call(context.Background(), client.PoolFullNodes, client.Sequential, "ping", []any{}, &out)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}

func TestRaceReturnsFirstSuccessAmongMany(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		var req jsonrpc.Request
		json.NewDecoder(r.Body).Decode(&req)
		resp, _ := jsonrpc.NewResult(req.ID, "slow")
		json.NewEncoder(w).Encode(resp)
	}))
	defer slow.Close()

	fast := jsonRPCServer(t, func(method string) (any, *jsonrpc.Error) { return "fast", nil })
	defer fast.Close()

	c := client.New(client.WithFullNodeURLs(slow.URL, fast.URL))
	var out string
	err := c.Call(context.Background(), client.PoolFullNodes, client.Race, "ping", []any{}, &out)
	require.NoError(t, err)
	require.Equal(t, "fast", out)
}

func TestSequentialRetriesOnTimeoutThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			time.Sleep(50 * time.Millisecond)
			return
		}
		var req jsonrpc.Request
		json.NewDecoder(r.Body).Decode(&req)
		resp, _ := jsonrpc.NewResult(req.ID, "ok")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := client.New(
		client.WithFullNodeURLs(srv.URL),
		client.WithTimeout(10*time.Millisecond),
		client.WithRetryConfig(client.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: time.Second}),
	)
	var out string
	err := c.Call(context.Background(), client.PoolFullNodes, client.Sequential, "ping", []any{}, &out)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestSequentialNonTimeoutErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := jsonRPCServer(t, func(method string) (any, *jsonrpc.Error) {
		calls.Add(1)
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "bad params"}
	})
	defer srv.Close()

	c := client.New(client.WithFullNodeURLs(srv.URL))
	var out string
	err := c.Call(context.Background(), client.PoolFullNodes, client.Sequential, "ping", []any{}, &out)
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}
