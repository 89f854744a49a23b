package dataset

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Row is one decoded dataset record. Fields are heterogeneous, so access goes
// through typed lookups that tolerate missing or mistyped values.
type Row map[string]any

// decodeRow parses a single JSON line. Anything other than an object is
// rejected.
func decodeRow(line []byte) (Row, bool) {
	var r Row
	if err := json.Unmarshal(line, &r); err != nil || r == nil {
		return nil, false
	}
	return r, true
}

// String returns the value at key rendered as a string. Numbers are
// formatted; other types and absent keys yield "".
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Rating returns the numeric rating and whether one was present. Numeric
// strings count as numeric.
func (r Row) Rating() (float64, bool) {
	switch v := r["rating"].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Images returns the object entries of the images list.
func (r Row) Images() []map[string]any {
	list, ok := r["images"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
