package eval

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/errors"
)

type truthLine struct {
	User string `json:"user"`
	Item string `json:"item"`
}

// ReadTruth reads JSON lines of {"user": ..., "item": ...} into a
// relevant set per user. Blank lines are skipped.
func ReadTruth(r io.Reader) (map[string]Set, error) {
	truth := make(map[string]Set)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var tl truthLine
		if err := json.Unmarshal(raw, &tl); err != nil {
			return nil, errors.InvalidInput("truth", fmt.Sprintf("line %d: %v", line, err))
		}
		if tl.User == "" || tl.Item == "" {
			return nil, errors.InvalidInput("truth", fmt.Sprintf("line %d: user and item are required", line))
		}
		set, ok := truth[tl.User]
		if !ok {
			set = make(Set)
			truth[tl.User] = set
		}
		set[tl.Item] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Storage("read truth", err)
	}
	return truth, nil
}
