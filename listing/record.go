// Package listing parses the structured data embedded in each search result
// and the free-form page summary.
package listing

import (
	"strconv"
	"strings"

	"github.com/ysmood/gson"

	"github.com/use-agent/listingcheck/models"
)

// Record is the parsed payload of one search result item.
type Record struct {
	root gson.JSON
}

// Parse decodes one item payload. It fails only when raw is not valid JSON.
func Parse(raw string) (Record, error) {
	var v any
	if err := gson.NewFrom(strings.TrimSpace(raw)).Unmarshal(&v); err != nil {
		return Record{}, models.NewVerifyError(models.ErrCodeMalformedData, "listing payload is not valid JSON", err)
	}
	return Record{root: gson.New(v)}, nil
}

// Lookup walks path through nested objects. The boolean is false as soon as
// a key is missing or the current node is not an object.
//
// An empty path is a programming error and panics with a configuration error.
func (r Record) Lookup(path ...string) (gson.JSON, bool) {
	if len(path) == 0 {
		panic(models.ConfigError("listing: lookup needs at least one key"))
	}
	node := r.root
	for _, key := range path {
		if _, isObject := node.Val().(map[string]any); !isObject {
			return gson.New(nil), false
		}
		next, ok := node.Gets(key)
		if !ok {
			return gson.New(nil), false
		}
		node = next
	}
	return node, true
}

// String looks up path and renders a scalar leaf as text.
// Objects, arrays and null count as absent.
func (r Record) String(path ...string) (string, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return "", false
	}
	switch t := v.Val().(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Raw returns the decoded value tree.
func (r Record) Raw() any {
	return r.root.Val()
}
