package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/component"
)

// openInput opens path for reading; "-" is stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

// eachLine calls fn for every non-blank line that is not a # comment,
// with its 1-based line number.
func eachLine(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// readRatings reads JSON lines of {"user", "item", "rating"}. A missing
// rating counts as 1 (implicit feedback).
func readRatings(r io.Reader) (*component.Dataset, error) {
	ds := &component.Dataset{}
	err := eachLine(r, func(n int, line []byte) error {
		var row struct {
			User   string   `json:"user"`
			Item   string   `json:"item"`
			Rating *float64 `json:"rating"`
		}
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("ratings line %d: %w", n, err)
		}
		if row.User == "" || row.Item == "" {
			return fmt.Errorf("ratings line %d: user and item are required", n)
		}
		value := 1.0
		if row.Rating != nil {
			value = *row.Rating
		}
		ds.Ratings = append(ds.Ratings, component.Rating{User: row.User, Item: row.Item, Value: value})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ds.Ratings) == 0 {
		return nil, fmt.Errorf("ratings: no rows")
	}
	return ds, nil
}

// readRequests reads one request per JSON line, either the full form
// {"id": ..., "params": {...}} or the shorthand {"user": "u1"}, which
// becomes a query for that user with the user as request id.
func readRequests(r io.Reader) ([]batch.Request, error) {
	var reqs []batch.Request
	err := eachLine(r, func(n int, line []byte) error {
		var row struct {
			ID     string         `json:"id"`
			User   string         `json:"user"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("requests line %d: %w", n, err)
		}
		switch {
		case row.Params != nil:
			reqs = append(reqs, batch.Request{ID: row.ID, Params: row.Params})
		case row.User != "":
			id := row.ID
			if id == "" {
				id = row.User
			}
			reqs = append(reqs, batch.Request{ID: id, Params: map[string]any{"query": map[string]any{"user": row.User}}})
		default:
			return fmt.Errorf("requests line %d: need params or user", n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("requests: no rows")
	}
	return reqs, nil
}

// parseParams merges a JSON object file with key=value flags. Values are
// decoded as JSON when they parse and kept as plain strings otherwise, so
// --param query=u1 and --param 'query={"user":"u1"}' both work.
func parseParams(file string, kvs []string, stdin io.Reader) (map[string]any, error) {
	params := make(map[string]any)
	if file != "" {
		f, err := openInput(file, stdin)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&params); err != nil {
			return nil, fmt.Errorf("params file %s: %w", file, err)
		}
	}
	for _, kv := range kvs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("param %q: want key=value", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		params[key] = v
	}
	return params, nil
}
