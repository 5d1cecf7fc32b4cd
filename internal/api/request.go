package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

var errBadTime = errors.New("time must be RFC3339 or YYYY-MM-DD")

// timeParam parses an optional query timestamp. Both full RFC3339 and a
// bare date are accepted; a bare date means midnight UTC.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid %s %q: %w", name, raw, errBadTime)
}

// boolParam parses an optional query flag, defaulting when absent.
func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: expected boolean", name, raw)
	}
	return v, nil
}

// page is the pagination window of a list request. Requests that set
// neither limit nor offset get the whole list.
type page struct {
	limit   int
	offset  int
	enabled bool
}

const (
	defaultPageLimit = 1000
	maxPageLimit     = 10000
)

// pageParams parses limit (1..10000, default 1000) and offset (>= 0,
// default 0).
func pageParams(r *http.Request) (page, error) {
	q := r.URL.Query()
	rawLimit, rawOffset := q.Get("limit"), q.Get("offset")
	if rawLimit == "" && rawOffset == "" {
		return page{}, nil
	}

	p := page{limit: defaultPageLimit, enabled: true}
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 1 || n > maxPageLimit {
			return page{}, fmt.Errorf("invalid limit %q: expected 1..%d", rawLimit, maxPageLimit)
		}
		p.limit = n
	}
	if rawOffset != "" {
		n, err := strconv.Atoi(rawOffset)
		if err != nil || n < 0 {
			return page{}, fmt.Errorf("invalid offset %q: expected >= 0", rawOffset)
		}
		p.offset = n
	}
	return p, nil
}

// slice applies the window to a list of length n, returning [lo, hi).
func (p page) slice(n int) (int, int) {
	if !p.enabled {
		return 0, n
	}
	lo := min(p.offset, n)
	hi := min(lo+p.limit, n)
	return lo, hi
}

// decodeBody parses an optional JSON request body into dst. An empty body
// leaves dst at its zero value.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// uidParam parses a device-internal uid path segment.
func uidParam(raw string) (int, error) {
	uid, err := strconv.Atoi(raw)
	if err != nil || uid < 0 {
		return 0, fmt.Errorf("invalid uid %q", raw)
	}
	return uid, nil
}
