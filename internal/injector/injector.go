// Package injector fills action context templates with values taken from
// event data.
//
// Two placeholder forms exist. A value that is exactly "$$<path>" is
// replaced by the single match of <path>, keeping its JSON type. Inline
// "${<path>}" placeholders are substituted inside larger strings. After
// inline substitution, "args(<text>)[<n>]" picks the n-th whitespace
// separated token of <text>. Unresolvable placeholders are left as written.
package injector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"triggerd/internal/pathquery"
)

// Mode selects which placeholder forms are honoured.
type Mode string

const (
	ModeWhole  Mode = "whole"
	ModeInline Mode = "inline"
	ModeBoth   Mode = "both"
)

// ParseMode maps a config value to a Mode, defaulting to ModeBoth.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeBoth:
		return ModeBoth, nil
	case ModeWhole:
		return ModeWhole, nil
	case ModeInline:
		return ModeInline, nil
	default:
		return "", fmt.Errorf("unknown injection mode %q", s)
	}
}

const wholePrefix = "$$"

var (
	inlinePattern = regexp.MustCompile(`\$\{(.*?)\}`)
	argsPattern   = regexp.MustCompile(`args\((.*?)\)\[([^\]]*)\]`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Injector resolves placeholders. It never fails.
type Injector struct {
	selector pathquery.Selector
	mode     Mode
}

// New creates an Injector. A nil selector uses the default caching one.
func New(selector pathquery.Selector, mode Mode) *Injector {
	if selector == nil {
		selector = pathquery.NewSelector()
	}
	if mode == "" {
		mode = ModeBoth
	}
	return &Injector{selector: selector, mode: mode}
}

// Mode returns the configured mode.
func (i *Injector) Mode() Mode {
	return i.mode
}

// Inject renders template against doc and returns a string.
func (i *Injector) Inject(template string, doc pathquery.Document) string {
	v := i.resolve(template, doc)
	if s, ok := v.(string); ok {
		return s
	}
	return render(v)
}

// InjectContext rewrites every top-level string field of ctx in place.
// Whole-value placeholders keep the matched value's type.
func (i *Injector) InjectContext(ctx map[string]interface{}, doc pathquery.Document) {
	for key, value := range ctx {
		s, ok := value.(string)
		if !ok {
			continue
		}
		ctx[key] = i.resolve(s, doc)
	}
}

func (i *Injector) resolve(s string, doc pathquery.Document) interface{} {
	if i.mode != ModeInline && strings.HasPrefix(s, wholePrefix) {
		if v, ok := i.single(doc, s[len(wholePrefix):]); ok {
			return v
		}
		return s
	}

	if i.mode == ModeWhole {
		return s
	}
	return ProcessArgs(i.inline(s, doc))
}

func (i *Injector) inline(s string, doc pathquery.Document) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return inlinePattern.ReplaceAllStringFunc(s, func(placeholder string) string {
		path := inlinePattern.FindStringSubmatch(placeholder)[1]
		if v, ok := i.single(doc, path); ok {
			return render(v)
		}
		return placeholder
	})
}

// single returns the match of path when there is exactly one.
func (i *Injector) single(doc pathquery.Document, path string) (interface{}, bool) {
	matches, err := i.selector.Select(doc, path)
	if err != nil || len(matches) != 1 {
		return nil, false
	}
	return matches[0], true
}

// ProcessArgs rewrites each args(<text>)[<n>] with the n-th token of text.
func ProcessArgs(s string) string {
	if !strings.Contains(s, "args(") {
		return s
	}
	return argsPattern.ReplaceAllStringFunc(s, func(expr string) string {
		m := argsPattern.FindStringSubmatch(expr)
		parts := whitespace.Split(m[1], -1)
		idx, err := strconv.Atoi(strings.TrimSpace(m[2]))
		if err != nil || idx < 0 || idx >= len(parts) {
			return "undefined"
		}
		return parts[idx]
	})
}

func render(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
