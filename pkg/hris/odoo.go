package hris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// OdooConfig carries the JSON-RPC connection parameters.
type OdooConfig struct {
	Host     string
	Port     int
	Protocol string // jsonrpc or jsonrpc+ssl
	Database string
	Login    string
	Password string
}

func (c OdooConfig) baseURL() string {
	scheme := "http"
	if c.Protocol == "jsonrpc+ssl" {
		scheme = "https"
	}
	return scheme + "://" + c.Host + ":" + strconv.Itoa(c.Port)
}

// OdooDirectory reads active employees from Odoo over JSON-RPC.
// Authentication happens lazily on first use and the uid is kept for the
// client's lifetime.
type OdooDirectory struct {
	cfg OdooConfig
	hc  *http.Client

	mu  sync.Mutex
	uid int
}

var _ Directory = (*OdooDirectory)(nil)

// NewOdooDirectory builds an unauthenticated client.
func NewOdooDirectory(cfg OdooConfig) *OdooDirectory {
	return &OdooDirectory{
		cfg: cfg,
		hc:  &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int       `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) String() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

func (o *OdooDirectory) call(ctx context.Context, service, method string, args []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      1,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.cfg.baseURL()+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.hc.Do(req)
	if err != nil {
		return fmt.Errorf("odoo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("odoo request: status %d", resp.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		return fmt.Errorf("odoo response: %w", err)
	}
	if rpc.Error != nil {
		return fmt.Errorf("odoo %s.%s: %s", service, method, rpc.Error.String())
	}
	return json.Unmarshal(rpc.Result, out)
}

// authenticate resolves and caches the session uid.
func (o *OdooDirectory) authenticate(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.uid != 0 {
		return o.uid, nil
	}

	// Odoo answers the numeric uid, or false for bad credentials.
	var raw any
	err := o.call(ctx, "common", "authenticate",
		[]any{o.cfg.Database, o.cfg.Login, o.cfg.Password, map[string]any{}}, &raw)
	if err != nil {
		return 0, err
	}
	uid, ok := raw.(float64)
	if !ok || uid == 0 {
		return 0, fmt.Errorf("odoo authentication rejected for %s", o.cfg.Login)
	}
	o.uid = int(uid)
	logger.Info("Authenticated to HRIS", "host", o.cfg.Host, "db", o.cfg.Database)
	return o.uid, nil
}

// employeeRow is the wire shape of one hr.employee record.
type employeeRow struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	IdentificationID any    `json:"identification_id"` // string, or false when unset
}

// Employees returns active employees that carry an identification number.
// Records without one cannot be correlated with a terminal user and are
// skipped with a warning.
func (o *OdooDirectory) Employees(ctx context.Context) ([]Employee, error) {
	uid, err := o.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var rows []employeeRow
	err = o.call(ctx, "object", "execute_kw", []any{
		o.cfg.Database, uid, o.cfg.Password,
		"hr.employee", "search_read",
		[]any{[]any{[]any{"active", "=", true}}},
		map[string]any{"fields": []string{"name", "identification_id"}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	employees := make([]Employee, 0, len(rows))
	for _, row := range rows {
		id, ok := row.IdentificationID.(string)
		if !ok || id == "" {
			logger.Warn("Employee has no identification number, skipping",
				"name", row.Name, "odoo_id", row.ID)
			continue
		}
		employees = append(employees, Employee{ID: id, Name: row.Name})
	}
	return employees, nil
}
