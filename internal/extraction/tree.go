package extraction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ConfSuffix marks the sibling key that carries a field's confidence.
const ConfSuffix = "_conf"

// step is one hop of a field path: a map key or a slice index.
type step struct {
	key   string
	index int
	isIdx bool
}

// parsePath splits "bills[0].account.mprn" into its steps.
func parsePath(path string) ([]step, error) {
	if strings.TrimSpace(path) == "" {
		return nil, eris.New("extraction: empty field path")
	}
	var steps []step
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, eris.Errorf("extraction: malformed field path %q", path)
		}
		name := part
		rest := ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, rest = part[:i], part[i:]
		}
		if name != "" {
			steps = append(steps, step{key: name})
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return nil, eris.Errorf("extraction: malformed field path %q", path)
			}
			idx, err := strconv.Atoi(rest[1:end])
			if err != nil || idx < 0 {
				return nil, eris.Errorf("extraction: bad index in field path %q", path)
			}
			steps = append(steps, step{index: idx, isIdx: true})
			rest = rest[end+1:]
		}
	}
	return steps, nil
}

// Get returns the value stored at path in a decoded JSON tree.
func Get(tree any, path string) (any, bool) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	cur := tree
	for _, s := range steps {
		switch node := cur.(type) {
		case map[string]any:
			if s.isIdx {
				return nil, false
			}
			v, ok := node[s.key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !s.isIdx || s.index >= len(node) {
				return nil, false
			}
			cur = node[s.index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Confidence returns the confidence annotation sitting next to the field at path.
func Confidence(tree any, path string) (float64, bool) {
	v, ok := Get(tree, path+ConfSuffix)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Set writes value at path, creating intermediate objects for missing keys.
// Slice indices must already exist.
func Set(tree map[string]any, path string, value any) error {
	steps, err := parsePath(path)
	if err != nil {
		return err
	}
	if steps[0].isIdx {
		return eris.Errorf("extraction: path %q must start with a key", path)
	}
	var cur any = tree
	for i, s := range steps {
		last := i == len(steps)-1
		switch node := cur.(type) {
		case map[string]any:
			if s.isIdx {
				return eris.Errorf("extraction: %q indexes an object", path)
			}
			if last {
				node[s.key] = value
				return nil
			}
			next, ok := node[s.key]
			if !ok || next == nil {
				if steps[i+1].isIdx {
					return eris.Errorf("extraction: %q indexes a missing list", path)
				}
				next = map[string]any{}
				node[s.key] = next
			}
			cur = next
		case []any:
			if !s.isIdx || s.index >= len(node) {
				return eris.Errorf("extraction: %q index out of range", path)
			}
			if last {
				node[s.index] = value
				return nil
			}
			cur = node[s.index]
		default:
			return eris.Errorf("extraction: %q walks through a scalar", path)
		}
	}
	return nil
}

// LeafPaths lists the path of every scalar leaf in tree, sorted. Confidence annotations are left out.
func LeafPaths(tree map[string]any) []string {
	var out []string
	var walk func(v any, path string)
	walk = func(v any, path string) {
		switch n := v.(type) {
		case map[string]any:
			for k, val := range n {
				if strings.HasSuffix(k, ConfSuffix) {
					continue
				}
				if path == "" {
					walk(val, k)
				} else {
					walk(val, path+"."+k)
				}
			}
		case []any:
			for i, val := range n {
				walk(val, path+"["+strconv.Itoa(i)+"]")
			}
		default:
			if path != "" {
				out = append(out, path)
			}
		}
	}
	walk(tree, "")
	sort.Strings(out)
	return out
}

// Clone deep-copies a decoded JSON tree.
func Clone(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	return cloneValue(tree).(map[string]any)
}

func cloneValue(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Stringify renders a leaf the way corrections are stored: null and missing become "".
func Stringify(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	case json.Number:
		return n.String()
	case map[string]any, []any:
		b, err := json.Marshal(n)
		if err != nil {
			return fmt.Sprint(n)
		}
		return string(b)
	default:
		return fmt.Sprint(n)
	}
}
