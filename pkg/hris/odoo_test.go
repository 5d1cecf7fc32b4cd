package hris

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T, handler http.HandlerFunc) *OdooDirectory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return NewOdooDirectory(OdooConfig{
		Host:     host,
		Port:     port,
		Protocol: "jsonrpc",
		Database: "abcfood",
		Login:    "bot@abcfood.com",
		Password: "secret",
	})
}

func rpcReply(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  result,
	})
}

func TestEmployeesSkipsRecordsWithoutID(t *testing.T) {
	var authCalls, readCalls int
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jsonrpc", r.URL.Path)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Params.Method {
		case "authenticate":
			authCalls++
			rpcReply(w, 7)
		case "execute_kw":
			readCalls++
			rpcReply(w, []map[string]any{
				{"id": 1, "name": "Aung Aung", "identification_id": "E1"},
				{"id": 2, "name": "No Badge", "identification_id": false},
				{"id": 3, "name": "Su Su", "identification_id": "E2"},
			})
		default:
			t.Fatalf("unexpected rpc method %q", req.Params.Method)
		}
	})

	got, err := dir.Employees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Employee{{ID: "E1", Name: "Aung Aung"}, {ID: "E2", Name: "Su Su"}}, got)

	// Second call reuses the cached uid.
	_, err = dir.Employees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, authCalls)
	assert.Equal(t, 2, readCalls)
}

func TestEmployeesAuthRejected(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		// Odoo answers false (decoded as 0) for bad credentials.
		rpcReply(w, false)
	})

	_, err := dir.Employees(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication rejected")
}

func TestEmployeesRPCError(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Params.Method == "authenticate" {
			rpcReply(w, 7)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error": map[string]any{
				"message": "Odoo Server Error",
				"data":    map[string]any{"message": "AccessDenied"},
			},
		})
	})

	_, err := dir.Employees(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}
