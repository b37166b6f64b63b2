package workflow

import (
	"encoding/json"
	"regexp"
	"strings"
)

// markerRe matches a `{{path}}` interpolation marker. Grounded directly
// on the teacher's skill.Interpolate marker pattern, generalized from a
// fixed two-segment namespace/key split to an arbitrary dot chain
// rooted at a node id (`{{n17.stdout}}`, `{{n17.cwd}}`, ...).
var markerRe = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// interpolate replaces every `{{path}}` marker in body with the string
// form of the value found by walking path against a snapshot of
// already-complete node results. Missing intermediates — an unknown
// node id, an absent field, a nil payload — expand to the empty string
// rather than erroring; interpolation is total by design (§4.2).
func interpolate(body string, results map[string]*NodeResult) string {
	return markerRe.ReplaceAllStringFunc(body, func(match string) string {
		inner := strings.TrimSpace(match[2 : len(match)-2])
		segments := strings.Split(inner, ".")
		if len(segments) < 2 {
			return ""
		}
		val := lookupResult(results[segments[0]], segments[1:])
		return stringifyValue(val)
	})
}

// interpolateData recursively walks a node's Data map, interpolating
// every string value it finds. Non-string values pass through
// unchanged; interpolation happens exactly once, before execution,
// against a snapshot taken at dispatch time.
func interpolateData(data map[string]interface{}, results map[string]*NodeResult) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = interpolateValue(v, results)
	}
	return out
}

func interpolateValue(v interface{}, results map[string]*NodeResult) interface{} {
	switch t := v.(type) {
	case string:
		return interpolate(t, results)
	case map[string]interface{}:
		return interpolateData(t, results)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = interpolateValue(e, results)
		}
		return out
	default:
		return v
	}
}

// lookupResult walks path against a single node's result payload. The
// first segment selects the payload kind's top-level field; anything
// beyond that is looked up by JSON field name via a round-trip through
// encoding/json, since the payload is a handful of small structs and
// reflection would be overkill for one or two levels of nesting.
func lookupResult(res *NodeResult, path []string) interface{} {
	if res == nil || len(path) == 0 {
		return nil
	}
	var payload interface{}
	switch {
	case res.Shell != nil:
		payload = res.Shell
	case res.AI != nil:
		payload = res.AI
	case res.Branch != nil:
		payload = res.Branch
	case res.File != nil:
		payload = res.File
	default:
		return nil
	}

	asMap, err := toMap(payload)
	if err != nil {
		return nil
	}
	var cur interface{} = asMap
	for _, seg := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = lookupCaseInsensitive(m, seg)
		if !ok {
			return nil
		}
	}
	return cur
}

func lookupCaseInsensitive(m map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	lower := strings.ToLower(key)
	for k, v := range m {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func toMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// stringifyValue renders an interpolated value as a string: scalars
// print directly, everything else (objects, arrays) is JSON-encoded,
// per §4.2 "objects are JSON-encoded".
func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64, int, int64:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
