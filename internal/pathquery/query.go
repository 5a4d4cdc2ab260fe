// Package pathquery resolves small JSONPath-style selectors against JSON
// documents.
//
// Supported grammar:
//
//	path     = [ "$" ] { segment }
//	segment  = "." name | "." "*" | "[" index "]" | "[" quoted "]" | "[*]"
//	name     = any run of characters other than "." and "["
//	index    = non-negative decimal integer
//	quoted   = "'" chars "'" | '"' chars '"'
//
// A leading name without a dot is accepted ("user.name" == "$.user.name").
// Wildcards fan out over array elements or object values, so a path may
// produce more than one match. Matches are returned in document order.
package pathquery

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"triggerd/internal/common/errors"
)

type segmentKind int

const (
	segKey segmentKind = iota
	segIndex
	segWildcard
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

// Query is a compiled path.
type Query struct {
	raw      string
	segments []segment
}

// String returns the source path.
func (q *Query) String() string {
	return q.raw
}

// Compile parses a path. Malformed paths return a config error.
func Compile(path string) (*Query, error) {
	s := strings.TrimSpace(path)
	q := &Query{raw: path}
	bare := true
	if strings.HasPrefix(s, "$") {
		s = s[1:]
		bare = false
	}

	i := 0
	first := bare
	for i < len(s) {
		switch {
		case s[i] == '.':
			i++
			if i < len(s) && s[i] == '*' {
				q.segments = append(q.segments, segment{kind: segWildcard})
				i++
				break
			}
			name, n := readName(s[i:])
			if name == "" {
				return nil, malformed(path, "empty name after '.'")
			}
			q.segments = append(q.segments, segment{kind: segKey, key: name})
			i += n
		case s[i] == '[':
			seg, n, err := readBracket(s[i:])
			if err != nil {
				return nil, malformed(path, err.Error())
			}
			q.segments = append(q.segments, seg)
			i += n
		case first:
			name, n := readName(s)
			q.segments = append(q.segments, segment{kind: segKey, key: name})
			i += n
		default:
			return nil, malformed(path, fmt.Sprintf("unexpected %q at offset %d", s[i], i))
		}
		first = false
	}

	return q, nil
}

func malformed(path, reason string) error {
	return errors.ConfigError(fmt.Sprintf("invalid path '%s': %s", path, reason))
}

func readName(s string) (string, int) {
	end := strings.IndexAny(s, ".[")
	if end < 0 {
		end = len(s)
	}
	return s[:end], end
}

func readBracket(s string) (segment, int, error) {
	closing := strings.IndexByte(s, ']')
	if closing < 0 {
		return segment{}, 0, fmt.Errorf("unterminated '['")
	}

	if len(s) > 1 && (s[1] == '\'' || s[1] == '"') {
		quote := s[1]
		end := strings.IndexByte(s[2:], quote)
		if end < 0 {
			return segment{}, 0, fmt.Errorf("unterminated quoted key")
		}
		end += 2
		if end+1 >= len(s) || s[end+1] != ']' {
			return segment{}, 0, fmt.Errorf("expected ']' after quoted key")
		}
		return segment{kind: segKey, key: s[2:end]}, end + 2, nil
	}

	inner := strings.TrimSpace(s[1:closing])
	if inner == "*" {
		return segment{kind: segWildcard}, closing + 1, nil
	}
	idx, err := strconv.Atoi(inner)
	if err != nil || idx < 0 {
		return segment{}, 0, fmt.Errorf("invalid index %q", inner)
	}
	return segment{kind: segIndex, index: idx}, closing + 1, nil
}

// Find returns every match of the query in doc.
func (q *Query) Find(doc Document) []gjson.Result {
	root := gjson.ParseBytes(doc.raw)
	if !root.Exists() {
		return nil
	}

	current := []gjson.Result{root}
	for _, seg := range q.segments {
		var next []gjson.Result
		for _, r := range current {
			switch seg.kind {
			case segKey:
				if r.IsObject() {
					if v := r.Get(escapeKey(seg.key)); v.Exists() {
						next = append(next, v)
					}
				}
			case segIndex:
				if r.IsArray() {
					if arr := r.Array(); seg.index < len(arr) {
						next = append(next, arr[seg.index])
					}
				} else if r.IsObject() {
					if v := r.Get(strconv.Itoa(seg.index)); v.Exists() {
						next = append(next, v)
					}
				}
			case segWildcard:
				if r.IsArray() || r.IsObject() {
					r.ForEach(func(_, v gjson.Result) bool {
						next = append(next, v)
						return true
					})
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

// escapeKey makes a literal key safe for gjson path syntax.
func escapeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c < 0x80 && !isPlainKeyChar(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isPlainKeyChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' || c == ' '
}

// Document is an immutable JSON document that queries run against.
type Document struct {
	raw []byte
}

// FromJSON wraps raw JSON; invalid JSON is a validation error.
func FromJSON(raw []byte) (Document, error) {
	if !gjson.ValidBytes(raw) {
		return Document{}, errors.ValidationError("document is not valid JSON")
	}
	return Document{raw: raw}, nil
}

// FromValue marshals any JSON-shaped value into a Document.
func FromValue(v interface{}) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Document{}, errors.ValidationError(fmt.Sprintf("event data is not JSON-shaped: %v", err))
	}
	return Document{raw: raw}, nil
}

// Raw returns the document bytes.
func (d Document) Raw() []byte {
	return d.raw
}

// Selector resolves a path against a document and returns the matched
// values decoded into Go types (string, float64, bool, nil, map, slice).
type Selector interface {
	Select(doc Document, path string) ([]interface{}, error)
}

// CachingSelector compiles each distinct path once.
type CachingSelector struct {
	cache sync.Map
}

// NewSelector returns a Selector that memoises compiled paths.
func NewSelector() *CachingSelector {
	return &CachingSelector{}
}

func (s *CachingSelector) compile(path string) (*Query, error) {
	if q, ok := s.cache.Load(path); ok {
		return q.(*Query), nil
	}
	q, err := Compile(path)
	if err != nil {
		return nil, err
	}
	s.cache.Store(path, q)
	return q, nil
}

// Select implements Selector.
func (s *CachingSelector) Select(doc Document, path string) ([]interface{}, error) {
	q, err := s.compile(path)
	if err != nil {
		return nil, err
	}

	matches := q.Find(doc)
	values := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		values = append(values, m.Value())
	}
	return values, nil
}
