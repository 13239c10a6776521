package extraction

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Onebillie/parsetastic/internal/models"
)

// NotFound is the sentinel newer extractions use for missing values.
const NotFound = "N/A"

// isMissing reports whether a raw leaf means "not found".
func isMissing(v any) bool {
	switch n := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(n)
		return s == "" || strings.EqualFold(s, NotFound) || strings.EqualFold(s, "null")
	}
	return false
}

// ParseDecimal handles the number formats models return: JSON numbers, numeric strings,
// strings with thousands separators, currency symbols or a trailing percent sign.
func ParseDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(val)
		s = strings.NewReplacer(",", "", "€", "", "EUR", "", "%", "", " ", "").Replace(s)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"2006-01-02T15:04:05Z07:00",
}

// ParseDate tries the date layouts seen on Irish bills. The zero time means unparseable.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NotFound) {
		return time.Time{}
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// section reads typed values out of one JSON object and remembers which keys it consumed.
type section struct {
	m        map[string]any
	path     string
	used     map[string]bool
	children []*section
	loose    []looseValue
}

// looseValue is a list item that was not an object; its scores still count.
type looseValue struct {
	path string
	v    any
}

func newSection(m map[string]any, path string) *section {
	if m == nil {
		m = map[string]any{}
	}
	return &section{m: m, path: path, used: map[string]bool{}}
}

func (s *section) fieldPath(key string) string {
	if s.path == "" {
		return key
	}
	return s.path + "." + key
}

func (s *section) conf(key string) (float64, bool) {
	ck := key + ConfSuffix
	raw, ok := s.m[ck]
	if !ok {
		return 0, false
	}
	s.used[ck] = true
	return confValue(raw)
}

// confValue accepts only numeric annotations; anything else is treated as unscored.
func confValue(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	}
	return 0, false
}

func (s *section) str(key string) models.Valued[string] {
	s.used[key] = true
	v := models.Valued[string]{Path: s.fieldPath(key)}
	v.Confidence, v.Scored = s.conf(key)
	raw, ok := s.m[key]
	if !ok || isMissing(raw) {
		return v
	}
	switch n := raw.(type) {
	case string:
		v.Value = strings.TrimSpace(n)
	case float64:
		v.Value = strconv.FormatFloat(n, 'f', -1, 64)
	case json.Number:
		v.Value = n.String()
	case bool:
		v.Value = strconv.FormatBool(n)
	default:
		return v
	}
	v.Found = true
	return v
}

func (s *section) num(key string) models.Valued[decimal.Decimal] {
	s.used[key] = true
	v := models.Valued[decimal.Decimal]{Path: s.fieldPath(key)}
	v.Confidence, v.Scored = s.conf(key)
	raw, ok := s.m[key]
	if !ok || isMissing(raw) {
		return v
	}
	if d, ok := ParseDecimal(raw); ok {
		v.Value = d
		v.Found = true
	}
	return v
}

// firstStr returns the first found value among keys, falling back to the first key's reading.
func (s *section) firstStr(keys ...string) models.Valued[string] {
	var out models.Valued[string]
	for i, k := range keys {
		v := s.str(k)
		if i == 0 {
			out = v
		}
		if v.Found {
			return v
		}
	}
	return out
}

func (s *section) firstNum(keys ...string) models.Valued[decimal.Decimal] {
	var out models.Valued[decimal.Decimal]
	for i, k := range keys {
		v := s.num(k)
		if i == 0 {
			out = v
		}
		if v.Found {
			return v
		}
	}
	return out
}

// child reads key as an object. A value of any other type stays unconsumed.
func (s *section) child(key string) *section {
	for _, c := range s.children {
		if c.path == s.fieldPath(key) {
			return c
		}
	}
	m, ok := s.m[key].(map[string]any)
	if ok || s.m[key] == nil {
		s.used[key] = true
	}
	c := newSection(m, s.fieldPath(key))
	s.children = append(s.children, c)
	return c
}

// list reads key as an array of objects. A value that is not an array stays unconsumed.
func (s *section) list(key string) []*section {
	arr, ok := s.m[key].([]any)
	if ok || s.m[key] == nil {
		s.used[key] = true
	}
	out := make([]*section, 0, len(arr))
	for i, item := range arr {
		path := s.fieldPath(key) + "[" + strconv.Itoa(i) + "]"
		m, ok := item.(map[string]any)
		if !ok {
			s.loose = append(s.loose, looseValue{path: path, v: item})
			continue
		}
		out = append(out, newSection(m, path))
	}
	s.children = append(s.children, out...)
	return out
}

func (s *section) flag(key string) bool {
	s.used[key] = true
	switch v := s.m[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}

// leftovers collects confidence annotations under keys this section or its children never consumed.
func (s *section) leftovers(add func(models.Score)) {
	for _, c := range s.children {
		c.leftovers(add)
	}
	for _, l := range s.loose {
		collectScores(l.v, l.path, add)
	}
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s.used[k] {
			continue
		}
		collectScores(s.m[k], s.fieldPath(k), add)
	}
}

// collectScores walks an unmapped subtree and reports every numeric *_conf leaf.
func collectScores(v any, path string, add func(models.Score)) {
	switch n := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectScores(n[k], path+"."+k, add)
		}
	case []any:
		for i, item := range n {
			collectScores(item, path+"["+strconv.Itoa(i)+"]", add)
		}
	default:
		if !strings.HasSuffix(path, ConfSuffix) {
			return
		}
		if f, ok := confValue(n); ok {
			add(models.Score{Path: strings.TrimSuffix(path, ConfSuffix), Confidence: f})
		}
	}
}
